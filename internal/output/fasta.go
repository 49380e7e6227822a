// internal/output/fasta.go
package output

import (
	"io"

	"kmerwalk/internal/assembly"
	"kmerwalk/pkg/api"
)

// ToAPIAssembly converts the chain and its current candidates.
func ToAPIAssembly(c *assembly.Chain) api.AssemblyV1 {
	v := api.AssemblyV1{
		Chain:      []string{},
		Candidates: []string{},
		Sequence:   c.Sequence(),
		Header:     c.Header(),
	}
	v.Length = len(v.Sequence)
	for _, id := range c.IDs() {
		v.Chain = append(v.Chain, id.String())
	}
	for _, id := range c.Candidates() {
		v.Candidates = append(v.Candidates, id.String())
	}
	return v
}

// WriteFASTA writes the assembled chain as one FASTA record. An empty chain
// writes nothing.
func WriteFASTA(w io.Writer, c *assembly.Chain) error {
	if c.Sequence() == "" {
		return nil
	}
	return c.WriteFASTA(w)
}
