// Package source decodes action batches from generation service responses.
package source

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"golang.org/x/sync/errgroup"

	"github.com/0-chirag-s/sitecrafter/api"
)

// DefaultSelector picks the action list out of a chat response body.
const DefaultSelector = "$.actions[*]"

// field aliases accepted for each action attribute, first match wins.
var (
	kindKeys    = []string{"type", "kind"}
	pathKeys    = []string{"path", "filePath"}
	payloadKeys = []string{"code", "payload", "content"}
	titleKeys   = []string{"title"}
	statusKeys  = []string{"status"}
)

// Decoder extracts actions from JSON documents with a JSONPath selector.
type Decoder struct {
	selector jp.Expr
	raw      string
}

// NewDecoder compiles selector. Empty selects DefaultSelector.
func NewDecoder(selector string) (*Decoder, error) {
	if strings.TrimSpace(selector) == "" {
		selector = DefaultSelector
	}
	x, err := jp.ParseString(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath '%s': %w", selector, err)
	}
	return &Decoder{selector: x, raw: selector}, nil
}

// Selector returns the JSONPath the decoder was built with.
func (d *Decoder) Selector() string { return d.raw }

// Decode parses data and returns the selected actions in document order.
// Matches that are not objects are skipped.
func (d *Decoder) Decode(data []byte) ([]api.Action, error) {
	doc, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse response json: %w", err)
	}

	matches := d.selector.Get(doc)
	actions := make([]api.Action, 0, len(matches))
	for _, m := range matches {
		obj, ok := m.(map[string]any)
		if !ok {
			continue
		}
		actions = append(actions, toAction(obj))
	}
	return actions, nil
}

// DecodeFile reads and decodes the file at path.
func (d *Decoder) DecodeFile(path string) ([]api.Action, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	actions, err := d.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return actions, nil
}

// LoadAll decodes every file concurrently. Batches come back in the order
// of paths; the first error cancels the rest.
func (d *Decoder) LoadAll(ctx context.Context, paths []string) ([][]api.Action, error) {
	batches := make([][]api.Action, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			actions, err := d.DecodeFile(p)
			if err != nil {
				return err
			}
			batches[i] = actions
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return batches, nil
}

func toAction(obj map[string]any) api.Action {
	a := api.Action{
		Kind:    api.ActionKind(lookup(obj, kindKeys)),
		Path:    lookup(obj, pathKeys),
		Payload: lookup(obj, payloadKeys),
		Title:   lookup(obj, titleKeys),
		Status:  api.ActionStatus(strings.ToLower(lookup(obj, statusKeys))),
	}
	if a.Status == "" {
		a.Status = api.StatusPending
	}
	return a
}

func lookup(obj map[string]any, keys []string) string {
	for _, k := range keys {
		v, ok := obj[k]
		if !ok || v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	return ""
}
