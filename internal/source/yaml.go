package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	synerrors "github.com/Aman-CERP/synexpand/internal/errors"
	"github.com/Aman-CERP/synexpand/internal/synonym"
)

// yamlDocument is the on-disk synonyms format:
//
//	synonyms:
//	  dagis: [förskola, lekis]
//	  tech now: technology
//	groups:
//	  - [car, auto, automobile]
//
// Entries under synonyms are one-way. Every member of a group becomes a
// synonym of every other member.
type yamlDocument struct {
	Synonyms map[string]phraseList `yaml:"synonyms"`
	Groups   []phraseList          `yaml:"groups,omitempty"`
}

// phraseList accepts either a single phrase or a list of phrases.
type phraseList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (p *phraseList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*p = phraseList{s}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*p = list
		return nil
	default:
		return fmt.Errorf("line %d: expected a phrase or a list of phrases", node.Line)
	}
}

// YAMLFile loads a dictionary from a YAML file on every Load.
type YAMLFile struct {
	path string
}

// NewYAMLFile creates a loader for path.
func NewYAMLFile(path string) *YAMLFile {
	return &YAMLFile{path: path}
}

// Path returns the file path.
func (f *YAMLFile) Path() string {
	return f.path
}

// Load implements synonym.Loader.
func (f *YAMLFile) Load(ctx context.Context) (synonym.Dictionary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, synerrors.New(synerrors.ErrCodeFileNotFound, "synonyms file not found: "+f.path, err).
			WithSuggestion("Create it with 'synexpand init' or point synonyms.path at an existing file")
	case errors.Is(err, fs.ErrPermission):
		return nil, synerrors.New(synerrors.ErrCodeFilePermission, "cannot read synonyms file: "+f.path, err)
	case err != nil:
		return nil, synerrors.New(synerrors.ErrCodeSynonymsUnavailable, "cannot read synonyms file: "+f.path, err)
	}

	dict, err := ParseYAML(data)
	if err != nil {
		var se *synerrors.SynError
		if errors.As(err, &se) {
			se.WithDetail("path", f.path)
		}
		return nil, err
	}
	return dict, nil
}

// ParseYAML decodes the synonyms YAML format. Phrases are normalized to
// single spaces; unknown top-level keys are rejected. Empty input yields an
// empty dictionary.
func ParseYAML(data []byte) (synonym.Dictionary, error) {
	var doc yamlDocument
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, synerrors.New(synerrors.ErrCodeSynonymsMalformed, "invalid synonyms YAML: "+err.Error(), err)
	}

	dict := make(synonym.Dictionary, len(doc.Synonyms))
	for phrase, syns := range doc.Synonyms {
		addEntry(dict, phrase, syns)
	}
	for _, group := range doc.Groups {
		addGroup(dict, group)
	}
	return dict, nil
}

// WriteYAML writes dict in the synonyms YAML format with sorted keys and
// values, so the output is stable.
func WriteYAML(w io.Writer, dict synonym.Dictionary) error {
	doc := yamlDocument{Synonyms: make(map[string]phraseList, len(dict))}
	for phrase, set := range dict {
		doc.Synonyms[phrase] = set.Sorted()
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode synonyms: %w", err)
	}
	return enc.Close()
}
