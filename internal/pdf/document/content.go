package document

import (
	"bytes"
	"fmt"
	"maps"
	"slices"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

func sortedKeys(d types.Dict) []string {
	return slices.Sorted(maps.Keys(d))
}

// Resources returns the page's own resource dictionary, materializing an
// inherited one onto the page first so additions never leak into siblings.
func (d *Document) Resources(p *Page) (types.Dict, error) {
	if obj, found := p.Dict.Find("Resources"); found && obj != nil {
		res, err := d.Ctx.DereferenceDict(obj)
		if err != nil {
			return nil, fmt.Errorf("page %d: invalid Resources: %w", p.Number, err)
		}
		if res != nil {
			return res, nil
		}
	}

	res := types.Dict{}
	if obj, found := d.Inherited(p.Dict, "Resources"); found {
		inherited, err := d.Ctx.DereferenceDict(obj)
		if err == nil && inherited != nil {
			res = inherited.Clone().(types.Dict)
		}
	}
	p.Dict["Resources"] = res
	return res, nil
}

// subDict returns res[key] as a dictionary, creating it when absent. An
// indirect subdictionary is copied onto res so that new entries stay local.
func (d *Document) subDict(res types.Dict, key string) (types.Dict, error) {
	obj, found := res.Find(key)
	if !found || obj == nil {
		sub := types.Dict{}
		res[key] = sub
		return sub, nil
	}
	sub, err := d.Ctx.DereferenceDict(obj)
	if err != nil {
		return nil, fmt.Errorf("invalid %s resources: %w", key, err)
	}
	if sub == nil {
		sub = types.Dict{}
		res[key] = sub
		return sub, nil
	}
	if _, indirect := obj.(types.IndirectRef); indirect {
		local := sub.Clone().(types.Dict)
		res[key] = local
		return local, nil
	}
	return sub, nil
}

// AddResource registers obj under a fresh name with the given prefix in the
// page's resource category (XObject, Font, ExtGState) and returns the name.
func (d *Document) AddResource(p *Page, category, prefix string, obj types.Object) (string, error) {
	res, err := d.Resources(p)
	if err != nil {
		return "", err
	}
	sub, err := d.subDict(res, category)
	if err != nil {
		return "", err
	}
	for i := 1; ; i++ {
		name := fmt.Sprintf("%s%d", prefix, i)
		if _, taken := sub.Find(name); !taken {
			sub[name] = obj
			return name, nil
		}
	}
}

// NewStream adds a Flate encoded stream object built from dict and content
// and returns its reference.
func (d *Document) NewStream(dict types.Dict, content []byte) (*types.IndirectRef, error) {
	sd, err := d.Ctx.NewStreamDictForBuf(content)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}
	for k, v := range dict {
		sd.Dict[k] = v
	}
	if err := sd.Encode(); err != nil {
		return nil, fmt.Errorf("failed to encode stream: %w", err)
	}
	ref, err := d.Ctx.IndRefForNewObject(*sd)
	if err != nil {
		return nil, fmt.Errorf("failed to add stream object: %w", err)
	}
	return ref, nil
}

// contentRefs lists the page's content stream objects in drawing order.
func contentRefs(p *Page) []types.Object {
	switch c := p.Dict["Contents"].(type) {
	case nil:
		return nil
	case types.Array:
		return c
	default:
		return []types.Object{c}
	}
}

// PageContent returns the decoded, concatenated content of the page.
func (d *Document) PageContent(p *Page) ([]byte, error) {
	objs := contentRefs(p)
	if arr, err := d.Ctx.DereferenceArray(p.Dict["Contents"]); err == nil && arr != nil {
		objs = arr
	}
	var buf bytes.Buffer
	for _, obj := range objs {
		sd, _, err := d.Ctx.DereferenceStreamDict(obj)
		if err != nil {
			return nil, fmt.Errorf("page %d: invalid content stream: %w", p.Number, err)
		}
		if sd == nil {
			continue
		}
		if len(sd.Content) == 0 && len(sd.Raw) > 0 {
			if err := sd.Decode(); err != nil {
				return nil, fmt.Errorf("page %d: failed to decode content: %w", p.Number, err)
			}
		}
		buf.Write(sd.Content)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// AppendContent draws content on top of the page. The existing content is
// isolated in its own graphics state and merged with the new operators into
// a single stream; when the old content cannot be decoded the streams are
// chained in a Contents array instead.
func (d *Document) AppendContent(p *Page, content []byte) error {
	old, err := d.PageContent(p)
	if err == nil {
		var buf bytes.Buffer
		if len(old) > 0 {
			buf.WriteString("q\n")
			buf.Write(old)
			buf.WriteString("Q\n")
		}
		buf.Write(content)
		ref, err := d.NewStream(types.Dict{}, buf.Bytes())
		if err != nil {
			return err
		}
		p.Dict["Contents"] = *ref
		return nil
	}

	head, err := d.NewStream(types.Dict{}, []byte("q\n"))
	if err != nil {
		return err
	}
	tail, err := d.NewStream(types.Dict{}, append([]byte("\nQ\n"), content...))
	if err != nil {
		return err
	}
	arr := types.Array{*head}
	arr = append(arr, contentRefs(p)...)
	arr = append(arr, *tail)
	p.Dict["Contents"] = arr
	return nil
}
