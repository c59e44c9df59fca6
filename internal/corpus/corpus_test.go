package corpus

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestXMLSentences(t *testing.T) {
	src := `<?xml version="1.0"?>
<case>
<name>Smith v Jones [2008] FCA 1</name>
<catchphrases>
<catchphrase "id=c0">copyright - infringement</catchphrase>
</catchphrases>
<sentences>
<sentence id="s0">  The applicant   sued
 for infringement. </sentence>
<sentence id="s1">Held: the <i>work</i> is original &amp; protected.</sentence>
<sentence id="s2">   </sentence>
<sentence id="s3">Appeal dismissed.</sentence>
</sentences>
</case>`

	got, err := XMLSentences(strings.NewReader(src))
	if err != nil {
		t.Fatalf("XMLSentences() error = %v", err)
	}
	want := []string{
		"The applicant sued for infringement.",
		"Held: the work is original & protected.",
		"Appeal dismissed.",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("XMLSentences() = %q, want %q", got, want)
	}
}

func TestXMLSentencesNoSentences(t *testing.T) {
	got, err := XMLSentences(strings.NewReader("<case><name>Empty</name></case>"))
	if err != nil {
		t.Fatalf("XMLSentences() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no sentences, got %q", got)
	}
}

func TestSplitSentences(t *testing.T) {
	got := SplitSentences("First point.  Second point!\nIs it third? trailing words")
	want := []string{"First point.", "Second point!", "Is it third?", "trailing words"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitSentences() = %q, want %q", got, want)
	}
}

func TestDecodeTextLatin1(t *testing.T) {
	got, err := decodeText([]byte{'c', 'a', 'f', 0xe9})
	if err != nil {
		t.Fatalf("decodeText() error = %v", err)
	}
	if got != "café" {
		t.Errorf("decodeText() = %q, want café", got)
	}
}

func TestFilterMatch(t *testing.T) {
	f := Filter{Include: []string{"**/*.xml"}, Exclude: []string{"drafts/**", "*.bak.xml"}}
	tests := []struct {
		path string
		want bool
	}{
		{"06_1.xml", true},
		{"2008/06_2.xml", true},
		{"drafts/06_3.xml", false},
		{"06_4.bak.xml", false},
		{"notes.txt", false},
	}
	for _, tt := range tests {
		if got := f.Match(tt.path); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestWalkOrderAndRead(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "b.xml", `<sentences><sentence>Beta one.</sentence></sentences>`)
	writeFile(t, root, "a.xml", `<sentences><sentence>Alpha one.</sentence><sentence>Alpha two.</sentence></sentences>`)
	writeFile(t, root, "sub/c.txt", "Gamma one. Gamma two.")
	writeFile(t, root, ".hidden/d.xml", `<sentence>hidden</sentence>`)

	docs, err := Walk(root, Filter{Include: []string{"**/*.xml", "**/*.txt"}})
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	var ids []string
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	if want := []string{"a.xml", "b.xml", "sub/c.txt"}; !reflect.DeepEqual(ids, want) {
		t.Fatalf("Walk() ids = %v, want %v", ids, want)
	}

	sentences, err := ReadSentences(docs[0])
	if err != nil {
		t.Fatalf("ReadSentences() error = %v", err)
	}
	if want := []string{"Alpha one.", "Alpha two."}; !reflect.DeepEqual(sentences, want) {
		t.Errorf("ReadSentences(a.xml) = %q, want %q", sentences, want)
	}

	sentences, err = ReadSentences(docs[2])
	if err != nil {
		t.Fatalf("ReadSentences() error = %v", err)
	}
	if want := []string{"Gamma one.", "Gamma two."}; !reflect.DeepEqual(sentences, want) {
		t.Errorf("ReadSentences(c.txt) = %q, want %q", sentences, want)
	}
}

func TestReadSentencesMissingFile(t *testing.T) {
	_, err := ReadSentences(Document{ID: "gone.xml", Path: filepath.Join(t.TempDir(), "gone.xml")})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
