package api

import (
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"
)

// Descriptor is the nested directory/file mapping handed to a sandbox mount.
// Keys keep insertion order through JSON and YAML encoding.
type Descriptor struct {
	entries *orderedmap.OrderedMap[string, *Entry]
}

// Entry is either a directory or a file. Exactly one field is set.
type Entry struct {
	Directory *Descriptor   `json:"directory,omitempty"`
	File      *FileContents `json:"file,omitempty"`
}

// FileContents wraps the text of a file entry.
type FileContents struct {
	Contents string `json:"contents"`
}

// NewDescriptor returns an empty descriptor.
func NewDescriptor() *Descriptor {
	return &Descriptor{entries: orderedmap.New[string, *Entry]()}
}

// DirEntry wraps d as a directory entry.
func DirEntry(d *Descriptor) *Entry {
	if d == nil {
		d = NewDescriptor()
	}
	return &Entry{Directory: d}
}

// FileEntry builds a file entry with the given contents.
func FileEntry(contents string) *Entry {
	return &Entry{File: &FileContents{Contents: contents}}
}

// IsDir reports whether e is a directory entry.
func (e *Entry) IsDir() bool { return e != nil && e.Directory != nil }

// Set adds or replaces the entry for name. A replaced key keeps its position.
func (d *Descriptor) Set(name string, e *Entry) {
	d.init()
	d.entries.Set(name, e)
}

// Get returns the entry stored under name.
func (d *Descriptor) Get(name string) (*Entry, bool) {
	if d == nil || d.entries == nil {
		return nil, false
	}
	return d.entries.Get(name)
}

// Len returns the number of direct entries.
func (d *Descriptor) Len() int {
	if d == nil || d.entries == nil {
		return 0
	}
	return d.entries.Len()
}

// Names returns the entry names in order.
func (d *Descriptor) Names() []string {
	if d == nil || d.entries == nil {
		return nil
	}
	names := make([]string, 0, d.entries.Len())
	for pair := d.entries.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Each calls fn for every direct entry in order, stopping at the first error.
func (d *Descriptor) Each(fn func(name string, e *Entry) error) error {
	if d == nil || d.entries == nil {
		return nil
	}
	for pair := d.entries.Oldest(); pair != nil; pair = pair.Next() {
		if err := fn(pair.Key, pair.Value); err != nil {
			return err
		}
	}
	return nil
}

func (d *Descriptor) init() {
	if d.entries == nil {
		d.entries = orderedmap.New[string, *Entry]()
	}
}

// MarshalJSON implements json.Marshaler.
func (d *Descriptor) MarshalJSON() ([]byte, error) {
	if d == nil || d.entries == nil {
		return []byte("{}"), nil
	}
	return d.entries.MarshalJSON()
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Descriptor) UnmarshalJSON(data []byte) error {
	d.entries = orderedmap.New[string, *Entry]()
	return d.entries.UnmarshalJSON(data)
}

// MarshalYAML implements yaml.Marshaler, emitting a mapping node so that
// key order survives.
func (d *Descriptor) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	err := d.Each(func(name string, e *Entry) error {
		val, err := e.yamlNode()
		if err != nil {
			return fmt.Errorf("entry %q: %w", name, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: name},
			val,
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

func (e *Entry) yamlNode() (*yaml.Node, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	switch {
	case e == nil:
		return nil, fmt.Errorf("nil entry")
	case e.Directory != nil:
		inner, err := e.Directory.MarshalYAML()
		if err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "directory"},
			inner.(*yaml.Node),
		)
	case e.File != nil:
		file := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		file.Content = append(file.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "contents"},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.File.Contents},
		)
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "file"},
			file,
		)
	default:
		return nil, fmt.Errorf("entry is neither directory nor file")
	}
	return node, nil
}

var (
	_ json.Marshaler   = (*Descriptor)(nil)
	_ json.Unmarshaler = (*Descriptor)(nil)
	_ yaml.Marshaler   = (*Descriptor)(nil)
)
