// internal/integration/integration_test.go
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"kmerwalk/internal/app"
	"kmerwalk/internal/oracle"
	"kmerwalk/internal/oracle/oracletest"
	"kmerwalk/pkg/api"
)

// Two read families share prefix, then branch on A / C.
const (
	prefix = "GATTACAGGCTTCAAGTCCGATGCAATGCC"
	tailA  = "TTGACCGTAGGCATCGAAT"
	tailC  = "GGCTAATCGCGTATCAGCT"
)

func readsOracle() *oracletest.Reads {
	var reads []string
	for i := 0; i < 4; i++ {
		reads = append(reads, prefix+"A"+tailA, prefix+"C"+tailC)
	}
	return oracletest.NewReads(map[string][]string{"0-reads": reads, "1-empty": {}})
}

func write(t *testing.T, name, data string) string {
	t.Helper()
	fn := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(fn, []byte(data), 0644); err != nil {
		t.Fatalf("write %s: %v", fn, err)
	}
	return fn
}

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errBuf bytes.Buffer
	code := app.Run(append([]string{"--log-level", "error"}, args...), &out, &errBuf)
	return code, out.String(), errBuf.String()
}

func TestBatchEndToEnd(t *testing.T) {
	srv := oracletest.NewServer(readsOracle())
	defer srv.Close()
	in := write(t, "q.csv", "id,kmer\nq1,GATTACA\nq2,ttttttt\n")

	code, out, errS := run(t, "batch", "--server", srv.URL, "--input", in, "--column", "2", "--header", "-d", "0-reads")
	if code != 0 {
		t.Fatalf("exit %d, err=%s", code, errS)
	}
	want := "id,kmer,forward_counts,reverse_complement_counts\n" +
		"q1,GATTACA,8,0\n" +
		"q2,ttttttt,0,0\n"
	if out != want {
		t.Fatalf("output:\n%s\nwant:\n%s", out, want)
	}
}

func TestBatchWideJSON(t *testing.T) {
	srv := oracletest.NewServer(readsOracle())
	defer srv.Close()
	in := write(t, "q.fa", ">first\nGATTACA\n>second\nTTGACC\n")

	code, out, errS := run(t, "batch", "--server", srv.URL, "--input", in, "--fasta",
		"-d", "0-reads=Reads", "-d", "1-empty", "--mode", "full", "--count", "forward", "-o", "json")
	if code != 0 {
		t.Fatalf("exit %d, err=%s", code, errS)
	}
	var res api.BatchResultV1
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(res.Datasets) != 2 || res.Datasets[0].Label != "Reads" || res.Datasets[1].Dataset != "1-empty" {
		t.Fatalf("datasets: %+v", res.Datasets)
	}
	if got := res.Datasets[0].Forward; len(got) != 2 || got[0] != 8 || got[1] != 4 {
		t.Fatalf("forward counts: %v", got)
	}
	if res.Labels[0] != "first" {
		t.Fatalf("labels: %v", res.Labels)
	}
}

func TestBatchInvalidKmersNoNetwork(t *testing.T) {
	fake := &oracletest.Fake{}
	srv := oracletest.NewServer(fake)
	defer srv.Close()
	in := write(t, "q.txt", "AACGT\nNNNXX\n")

	code, _, errS := run(t, "batch", "--server", srv.URL, "--input", in, "-d", "x")
	if code != 2 {
		t.Fatalf("want exit 2, got %d (%s)", code, errS)
	}
	if !strings.Contains(errS, "NNNXX") {
		t.Fatalf("error should name the bad k-mer: %s", errS)
	}
	if n := fake.CallCount(""); n != 0 {
		t.Fatalf("expected no requests, got %d", n)
	}
}

func TestBatchRetriesTransportErrors(t *testing.T) {
	var calls atomic.Int32
	fake := &oracletest.Fake{
		Mass: func(_ context.Context, kmers []string, _ string, fw, rc bool) (oracle.Counts, error) {
			if calls.Add(1) <= 2 {
				return oracle.Counts{}, oracletest.TransportFailure("massQuery")
			}
			return oracletest.DefaultCounts(kmers, fw, rc), nil
		},
	}
	srv := oracletest.NewServer(fake)
	defer srv.Close()
	in := write(t, "q.txt", "AAC\nGT\n")

	code, out, errS := run(t, "batch", "--server", srv.URL, "--input", in, "-d", "x", "--retry-initial", "1ms")
	if code != 0 {
		t.Fatalf("exit %d, err=%s", code, errS)
	}
	if !strings.Contains(out, "AAC,3,2") {
		t.Fatalf("output: %s", out)
	}
	if calls.Load() != 3 {
		t.Fatalf("want 3 attempts, got %d", calls.Load())
	}
}

func TestParallelMatchesSerial(t *testing.T) {
	srv := oracletest.NewServer(readsOracle())
	defer srv.Close()
	var sb strings.Builder
	for i := 0; i+7 <= len(prefix); i++ {
		sb.WriteString(prefix[i:i+7] + "\n")
	}
	in := write(t, "q.txt", sb.String())

	runWith := func(parallel string) string {
		code, out, errS := run(t, "batch", "--server", srv.URL, "--input", in,
			"-d", "0-reads", "-d", "1-empty", "--page-size", "3", "--parallel", parallel)
		if code != 0 {
			t.Fatalf("exit %d err %s", code, errS)
		}
		return out
	}
	serial, parallel := runWith("1"), runWith("2")
	if serial != parallel {
		t.Fatalf("parallel output differs from serial\nserial: %s\nparallel:%s", serial, parallel)
	}
}

func TestWalkTextAndFASTA(t *testing.T) {
	srv := oracletest.NewServer(readsOracle())
	defer srv.Close()
	seed := prefix[:21]

	code, out, errS := run(t, "walk", "--server", srv.URL, "-d", "0-reads", "-s", seed, "-t", "3")
	if code != 0 {
		t.Fatalf("exit %d, err=%s", code, errS)
	}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("want header + 3 nodes, got:\n%s", out)
	}
	if !strings.HasPrefix(lines[1], "n0\tresults_ready\tseed\t30\tn1,n2\t"+prefix) {
		t.Fatalf("seed row: %q", lines[1])
	}

	code, out, errS = run(t, "walk", "--server", srv.URL, "-d", "0-reads", "-s", seed, "-t", "3",
		"--chain", "n0,n1", "-o", "fasta")
	if code != 0 {
		t.Fatalf("exit %d, err=%s", code, errS)
	}
	wantSeq := prefix + "A" + tailA
	want := ">0-reads:" + seed + ":3:50\n" + wantSeq + "\n"
	if out != want {
		t.Fatalf("fasta:\n%s\nwant:\n%s", out, want)
	}
}

func TestWalkJSONAndJSONL(t *testing.T) {
	srv := oracletest.NewServer(readsOracle())
	defer srv.Close()
	seed := prefix[:21]

	code, out, errS := run(t, "walk", "--server", srv.URL, "-d", "0-reads", "-s", seed, "-t", "3", "-o", "json", "--depth", "1")
	if code != 0 {
		t.Fatalf("exit %d, err=%s", code, errS)
	}
	var g api.GraphV1
	if err := json.Unmarshal([]byte(out), &g); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(g.Nodes) != 3 || len(g.Edges) != 2 || g.Nodes[1].State != "unexplored" {
		t.Fatalf("depth-1 graph: %+v", g)
	}
	if g.Edges[0].Label != "A:4" || g.Edges[1].Label != "C:4" {
		t.Fatalf("edges: %+v", g.Edges)
	}

	code, out, errS = run(t, "walk", "--server", srv.URL, "-d", "0-reads", "-s", seed, "-t", "3", "-o", "jsonl")
	if code != 0 {
		t.Fatalf("exit %d, err=%s", code, errS)
	}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	var first api.EventV1
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil || first.Type != "reset" {
		t.Fatalf("first event: %v %+v", err, first)
	}
	edges := 0
	for _, l := range lines {
		var ev api.EventV1
		if err := json.Unmarshal([]byte(l), &ev); err != nil {
			t.Fatalf("bad line %q: %v", l, err)
		}
		if ev.Type == "edge_added" {
			edges++
		}
	}
	if edges != 2 {
		t.Fatalf("want 2 edge events, got %d", edges)
	}
}

func TestWalkServerDown(t *testing.T) {
	srv := oracletest.NewServer(readsOracle())
	url := srv.URL
	srv.Close()

	code, _, errS := run(t, "walk", "--server", url, "-d", "0-reads", "-s", prefix[:21], "-t", "3")
	if code != 3 {
		t.Fatalf("want exit 3 when the server is unreachable, got %d", code)
	}
	if !strings.Contains(errS, "the seed could not be expanded") {
		t.Fatalf("stderr: %s", errS)
	}
}

func TestWalkSeedNotExpandable(t *testing.T) {
	// A path shorter than k-1 cannot be folded into the graph.
	fake := &oracletest.Fake{
		Path: func(context.Context, string, string, int) (oracle.PathResult, error) {
			return oracle.PathResult{Path: "AC", NextForward: [4]int{5, 0, 0, 0}}, nil
		},
	}
	srv := oracletest.NewServer(fake)
	defer srv.Close()

	code, out, errS := run(t, "walk", "--server", srv.URL, "-d", "x", "-s", "ACGT", "-t", "1")
	if code != 1 {
		t.Fatalf("want exit 1 when nothing could be expanded, got %d (stderr=%s)", code, errS)
	}
	if out != "" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestUsageErrors(t *testing.T) {
	for _, args := range [][]string{
		{"frobnicate"},
		{"walk", "-d", "x", "-s", "ACGT", "-t", "many"},
		{"walk", "-d", "x", "-s", "ACGN", "-t", "1"},
		{"batch", "--input", "q", "-d", "x", "--mode", "sideways"},
	} {
		if code, _, _ := run(t, args...); code != 2 {
			t.Fatalf("%v: want exit 2, got %d", args, code)
		}
	}
}

func TestBatchDuplicateDataset(t *testing.T) {
	srv := oracletest.NewServer(readsOracle())
	defer srv.Close()
	in := write(t, "q.txt", "GATTACA\nTTGACC\n")

	for _, layout := range []string{"wide", "long"} {
		code, out, errS := run(t, "batch", "--server", srv.URL, "--input", in,
			"-d", "0-reads", "-d", "0-reads=again", "--layout", layout)
		if code != 2 {
			t.Fatalf("%s: want exit 2, got %d (stderr=%s)", layout, code, errS)
		}
		if out != "" || !strings.Contains(errS, "duplicate dataset [0-reads]") {
			t.Fatalf("%s: out=%q stderr=%q", layout, out, errS)
		}
	}
}

func TestVersion(t *testing.T) {
	code, out, _ := run(t, "version")
	if code != 0 || !strings.HasPrefix(out, "kmerwalk version ") {
		t.Fatalf("version: %d %q", code, out)
	}
}
