package rewrite

import (
	"bytes"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/imgclean/internal/apperr"
	"github.com/starford/imgclean/internal/extract"
	"github.com/starford/imgclean/internal/jsonvalue"
	"github.com/starford/imgclean/internal/testutil"
)

func decode(t *testing.T, data []byte) jsonvalue.Value {
	t.Helper()
	v, err := jsonvalue.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return v
}

func staticDir(dir string) func() (string, error) {
	return func() (string, error) { return dir, nil }
}

func str(t *testing.T, v jsonvalue.Value) string {
	t.Helper()
	s, ok := v.Str()
	if !ok {
		t.Fatalf("value is %s, want string", v.Kind())
	}
	return s
}

// failingExtractor always fails, counting calls.
type failingExtractor struct{ calls int }

func (f *failingExtractor) Extract(string, string, int) (extract.Result, error) {
	f.calls++
	return extract.Result{}, apperr.ErrExtraction
}

func TestRewrite_GIFAndTextScenario(t *testing.T) {
	dir := t.TempDir()
	gif := testutil.GIFBytes(512)
	raw := testutil.HistoryDoc(t, map[string][]any{
		"/home/u/proj": {[]any{testutil.DataURI("gif", gif), "just some pasted text"}},
	})

	var stats Stats
	out, err := CleanHistory(decode(t, raw), &stats, HistoryOptions{
		PreserveImages: true,
		ProjectDir:     func(string) func() (string, error) { return staticDir(dir) },
		Extractor:      extract.New(nil),
	})
	if err != nil {
		t.Fatalf("CleanHistory: %v", err)
	}
	if stats.ItemsCleaned != 1 || stats.ImagesExtracted != 1 {
		t.Fatalf("stats = %+v, want 1 cleaned / 1 extracted", stats)
	}

	projects, _ := out.Get(KeyProjects)
	proj, _ := projects.Get("/home/u/proj")
	hist, _ := proj.Get(KeyHistory)
	pasted, _ := hist.Elems()[0].Get(KeyPasted)
	entries := pasted.Elems()

	marker := str(t, entries[0])
	if !strings.HasPrefix(marker, "[IMAGE_FILE:") || !strings.HasSuffix(marker, ".gif]") {
		t.Fatalf("marker = %q", marker)
	}
	path := strings.TrimSuffix(strings.TrimPrefix(marker, "[IMAGE_FILE:"), "]")
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read extracted: %v", err)
	}
	if !bytes.Equal(got, gif) {
		t.Error("extracted gif differs from payload")
	}
	if s := str(t, entries[1]); s != "just some pasted text" {
		t.Errorf("text entry changed: %q", s)
	}
}

func TestRewrite_LongNonBase64Untouched(t *testing.T) {
	raw := testutil.HistoryDoc(t, map[string][]any{
		"p": {map[string]any{"1": strings.Repeat("#!~", 20000)}},
	})
	doc := decode(t, raw)

	var stats Stats
	out, err := CleanHistory(doc, &stats, HistoryOptions{PreserveImages: true})
	if err != nil {
		t.Fatalf("CleanHistory: %v", err)
	}
	if stats.ItemsCleaned != 0 {
		t.Errorf("items cleaned = %d, want 0", stats.ItemsCleaned)
	}
	if !jsonvalue.Equal(doc, out) {
		t.Error("document changed")
	}
}

func TestRewrite_Idempotent(t *testing.T) {
	dir := t.TempDir()
	raw := testutil.HistoryDoc(t, map[string][]any{
		"a": {map[string]any{"1": map[string]any{"type": "image", "content": testutil.DataURI("png", testutil.PNGBytes(64))}}},
		"b": {[]any{base64.StdEncoding.EncodeToString(make([]byte, 40000))}},
	})
	opts := HistoryOptions{
		PreserveImages: true,
		ProjectDir:     func(string) func() (string, error) { return staticDir(dir) },
		Extractor:      extract.New(nil),
	}

	var first Stats
	once, err := CleanHistory(decode(t, raw), &first, opts)
	if err != nil {
		t.Fatal(err)
	}
	if first.ItemsCleaned != 2 || first.ImagesExtracted != 1 {
		t.Fatalf("first pass stats = %+v", first)
	}

	var second Stats
	twice, err := CleanHistory(once, &second, opts)
	if err != nil {
		t.Fatal(err)
	}
	if second != (Stats{}) {
		t.Errorf("second pass stats = %+v, want zero", second)
	}
	if !jsonvalue.Equal(once, twice) {
		t.Error("second pass changed the document")
	}
}

func TestRewrite_DestructiveNeverExtracts(t *testing.T) {
	uri := testutil.DataURI("png", testutil.PNGBytes(100))
	doc := decode(t, []byte(`{"k":"`+uri+`","list":["`+uri+`",{"deep":["`+uri+`"]}],"n":5}`))

	dirCalls := 0
	var stats Stats
	out, err := Rewrite(doc, &stats, Options{
		PreserveImages: false,
		OutputDir: func() (string, error) {
			dirCalls++
			return t.TempDir(), nil
		},
		Extractor: extract.New(nil),
	})
	if err != nil {
		t.Fatal(err)
	}
	if dirCalls != 0 {
		t.Errorf("output dir requested %d times in destructive mode", dirCalls)
	}
	if stats.ItemsCleaned != 3 || stats.ImagesExtracted != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.TotalRemovedSize != int64(3*len(uri)) {
		t.Errorf("removed size = %d, want %d", stats.TotalRemovedSize, 3*len(uri))
	}

	want := decode(t, []byte(`{"k":"[IMAGE_REMOVED]","list":["[IMAGE_REMOVED]",{"deep":["[IMAGE_REMOVED]"]}],"n":5}`))
	if !jsonvalue.Equal(out, want) {
		enc, _ := jsonvalue.Encode(out, "")
		t.Errorf("got %s", enc)
	}
	// Input is not modified.
	k, _ := doc.Get("k")
	if str(t, k) != uri {
		t.Error("input document was mutated")
	}
}

func TestRewrite_StatsCountedBeforeExtraction(t *testing.T) {
	ext := &failingExtractor{}
	uri := testutil.DataURI("png", testutil.PNGBytes(100))
	doc := jsonvalue.ArrayValue(jsonvalue.StringValue(uri), jsonvalue.StringValue(uri))

	var stats Stats
	out, err := Rewrite(doc, &stats, Options{
		PreserveImages: true,
		OutputDir:      staticDir(t.TempDir()),
		Extractor:      ext,
	})
	if err != nil {
		t.Fatal(err)
	}
	if ext.calls != 2 {
		t.Errorf("extractor calls = %d, want 2", ext.calls)
	}
	if stats.ItemsCleaned != 2 || stats.ImagesExtracted != 0 || stats.TotalRemovedSize != int64(2*len(uri)) {
		t.Errorf("stats = %+v", stats)
	}
	for _, e := range out.Elems() {
		if str(t, e) != RemovedMarker {
			t.Errorf("entry = %q, want removed marker", str(t, e))
		}
	}
}

func TestRewrite_UnextractableRawBlobRemoved(t *testing.T) {
	ext := &failingExtractor{}
	blob := base64.StdEncoding.EncodeToString(make([]byte, 40000))

	var stats Stats
	out, err := Rewrite(jsonvalue.StringValue(blob), &stats, Options{
		PreserveImages: true,
		OutputDir:      staticDir(t.TempDir()),
		Extractor:      ext,
	})
	if err != nil {
		t.Fatal(err)
	}
	if ext.calls != 0 {
		t.Error("extractor must not run for an unextractable blob")
	}
	if str(t, out) != RemovedMarker || stats.ItemsCleaned != 1 {
		t.Errorf("out = %q, stats = %+v", str(t, out), stats)
	}
}

func TestRewrite_SequenceFollowsItemsCleaned(t *testing.T) {
	dir := t.TempDir()
	blob := base64.StdEncoding.EncodeToString(make([]byte, 40000))
	png := testutil.DataURI("png", testutil.PNGBytes(64))
	doc := jsonvalue.ArrayValue(
		jsonvalue.StringValue(blob), // seq 1, removed
		jsonvalue.StringValue(png),  // seq 2
	)

	var stats Stats
	var seen []int
	_, err := Rewrite(doc, &stats, Options{
		PreserveImages: true,
		OutputDir:      staticDir(dir),
		Extractor:      extract.New(nil),
		OnExtract:      func(r extract.Result) { seen = append(seen, r.Sequence) },
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(seen) != 1 || seen[0] != 2 {
		t.Errorf("extracted sequences = %v, want [2]", seen)
	}
	if _, err := os.Stat(filepath.Join(dir, "image_002.png")); err != nil {
		t.Errorf("image_002.png missing: %v", err)
	}
}

func TestRewrite_DirectoryFailureIsFatal(t *testing.T) {
	doc := jsonvalue.ArrayValue(jsonvalue.StringValue(testutil.DataURI("png", testutil.PNGBytes(64))))
	var stats Stats
	_, err := Rewrite(doc, &stats, Options{
		PreserveImages: true,
		OutputDir:      func() (string, error) { return "", errors.New("read-only file system") },
		Extractor:      extract.New(nil),
	})
	if !errors.Is(err, apperr.ErrDirectory) {
		t.Fatalf("err = %v, want ErrDirectory", err)
	}
}

func TestCleanHistory_ToleratesMalformedBranches(t *testing.T) {
	uri := testutil.DataURI("png", testutil.PNGBytes(64))
	raw := []byte(`{
		"projects": {
			"no-history": {"other": 1},
			"history-not-array": {"history": "oops"},
			"item-not-object": {"history": [1, "two", null]},
			"no-pasted": {"history": [{"display": "hi"}]},
			"outside-pasted": {"history": [{"display": "` + uri + `", "pastedContents": {}}]},
			"ok": {"history": [{"pastedContents": {"1": {"content": "` + uri + `"}}}]}
		},
		"topLevel": "` + uri + `"
	}`)
	doc := decode(t, raw)

	var stats Stats
	out, err := CleanHistory(doc, &stats, HistoryOptions{})
	if err != nil {
		t.Fatalf("CleanHistory: %v", err)
	}
	if stats.ItemsCleaned != 1 {
		t.Errorf("items cleaned = %d, want 1 (only pastedContents are scanned)", stats.ItemsCleaned)
	}
	top, _ := out.Get("topLevel")
	if str(t, top) != uri {
		t.Error("strings outside pastedContents must be left alone")
	}

	notProjects := decode(t, []byte(`{"projects": []}`))
	if _, err := CleanHistory(notProjects, &stats, HistoryOptions{}); err != nil {
		t.Errorf("non-object projects: %v", err)
	}
}

func TestCleanHistory_LazyProjectDirs(t *testing.T) {
	raw := testutil.HistoryDoc(t, map[string][]any{
		"with-image": {[]any{testutil.DataURI("png", testutil.PNGBytes(64))}},
		"text-only":  {[]any{"hello"}},
	})
	requested := map[string]int{}
	base := t.TempDir()

	var stats Stats
	var extracted []string
	_, err := CleanHistory(decode(t, raw), &stats, HistoryOptions{
		PreserveImages: true,
		ProjectDir: func(project string) func() (string, error) {
			return func() (string, error) {
				requested[project]++
				return filepath.Join(base, project), nil
			}
		},
		Extractor: extract.New(nil),
		OnExtract: func(project string, _ extract.Result) { extracted = append(extracted, project) },
	})
	if err != nil {
		t.Fatal(err)
	}
	if requested["text-only"] != 0 {
		t.Error("directory requested for a project without images")
	}
	if requested["with-image"] != 1 {
		t.Errorf("with-image dir requested %d times", requested["with-image"])
	}
	if len(extracted) != 1 || extracted[0] != "with-image" {
		t.Errorf("OnExtract projects = %v", extracted)
	}
}

func TestFileMarker(t *testing.T) {
	if got := FileMarker("/tmp/x/image_001.png"); got != "[IMAGE_FILE:/tmp/x/image_001.png]" {
		t.Errorf("FileMarker = %s", got)
	}
}

func TestCleanHistory_KeepsNonImageLiterals(t *testing.T) {
	uri := testutil.DataURI("png", testutil.PNGBytes(256))
	raw := []byte(`{"projects":{"p":{"history":[{"pastedContents":{"t1":"half \ud83d emoji","img":"` + uri + `"}}]}},"note":"é"}`)

	var stats Stats
	out, err := CleanHistory(decode(t, raw), &stats, HistoryOptions{PreserveImages: false})
	if err != nil {
		t.Fatalf("CleanHistory: %v", err)
	}
	if stats.ItemsCleaned != 1 {
		t.Fatalf("items cleaned = %d, want 1", stats.ItemsCleaned)
	}

	enc, err := jsonvalue.Encode(out, "")
	if err != nil {
		t.Fatal(err)
	}
	want := `{"projects":{"p":{"history":[{"pastedContents":{"t1":"half \ud83d emoji","img":"[IMAGE_REMOVED]"}}]}},"note":"é"}`
	if string(enc) != want {
		t.Errorf("encoded:\n got %s\nwant %s", enc, want)
	}
}
