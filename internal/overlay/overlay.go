// Package overlay parses the XML overlay list format: a list of <overlay>
// nodes describing where third-party package trees live. Both the element
// form (<name>, <source>, <owner><email>) and the older attribute form
// (name=, src=, contact=) are accepted.
package overlay

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// DefaultPriority is assigned to overlays that do not declare one.
const DefaultPriority = 50

// Overlay describes a single package tree source.
type Overlay struct {
	Name        string
	Source      string
	SourceType  string
	OwnerName   string
	OwnerEmail  string
	Description string
	Status      string
	Priority    int
}

// Official reports whether the overlay is marked as officially supported.
func (o Overlay) Official() bool {
	return o.Status == "official"
}

// Registry holds the overlays declared by one list document.
type Registry struct {
	overlays []Overlay
	byName   map[string]Overlay
}

// Option configures registry parsing.
type Option func(*decoder)

// WithIgnoreMissing downgrades missing owner email and description fields
// from errors to warnings.
func WithIgnoreMissing() Option {
	return func(d *decoder) {
		d.ignoreMissing = true
	}
}

// WithLogger sets the logger used for parse warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(d *decoder) {
		d.logger = logger
	}
}

type decoder struct {
	ignoreMissing bool
	logger        *zap.Logger
}

// LoadRegistry reads and parses the overlay list at path.
func LoadRegistry(path string, opts ...Option) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFileNotFound, path, err)
	}
	defer f.Close()
	return ParseRegistry(f, opts...)
}

// ParseRegistry parses an overlay list document from r. Overlays are sorted
// by priority, then name.
func ParseRegistry(r io.Reader, opts ...Option) (*Registry, error) {
	d := &decoder{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(d)
	}

	var doc registryXML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	reg := &Registry{byName: make(map[string]Overlay, len(doc.Overlays))}
	for _, node := range doc.Overlays {
		o, err := d.build(node)
		if err != nil {
			return nil, err
		}
		if _, dup := reg.byName[o.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, o.Name)
		}
		reg.overlays = append(reg.overlays, o)
		reg.byName[o.Name] = o
	}

	sort.SliceStable(reg.overlays, func(i, j int) bool {
		if reg.overlays[i].Priority != reg.overlays[j].Priority {
			return reg.overlays[i].Priority < reg.overlays[j].Priority
		}
		return reg.overlays[i].Name < reg.overlays[j].Name
	})

	return reg, nil
}

// All returns the overlays in (priority, name) order.
func (r *Registry) All() []Overlay {
	out := make([]Overlay, len(r.overlays))
	copy(out, r.overlays)
	return out
}

// ByName looks up an overlay by its unique name.
func (r *Registry) ByName(name string) (Overlay, bool) {
	o, ok := r.byName[name]
	return o, ok
}

// Len returns the number of overlays in the registry.
func (r *Registry) Len() int {
	return len(r.overlays)
}

func (d *decoder) build(node overlayXML) (Overlay, error) {
	o := Overlay{
		Name:        firstNonEmpty(strings.TrimSpace(node.Name), node.NameAttr),
		Source:      firstNonEmpty(strings.TrimSpace(node.Source.URL), node.SrcAttr),
		SourceType:  node.Source.Type,
		OwnerName:   strings.TrimSpace(node.Owner.Name),
		OwnerEmail:  firstNonEmpty(strings.TrimSpace(node.Owner.Email), node.ContactAttr),
		Description: strings.TrimSpace(node.Description),
		Status:      node.Status,
		Priority:    DefaultPriority,
	}

	if node.Priority != "" {
		p, err := strconv.Atoi(node.Priority)
		if err != nil {
			return Overlay{}, fmt.Errorf("%w: overlay %q: priority %q", ErrInvalidDocument, o.Name, node.Priority)
		}
		o.Priority = p
	}

	if o.Name == "" {
		return Overlay{}, ErrMissingName
	}
	if o.Source == "" {
		return Overlay{}, fmt.Errorf("overlay %q: %w", o.Name, ErrMissingSource)
	}
	if o.OwnerEmail == "" {
		if !d.ignoreMissing {
			return Overlay{}, fmt.Errorf("overlay %q: %w", o.Name, ErrMissingOwner)
		}
		d.logger.Warn("overlay has no owner email", zap.String("overlay", o.Name))
	}
	if o.Description == "" {
		if !d.ignoreMissing {
			return Overlay{}, fmt.Errorf("overlay %q: %w", o.Name, ErrMissingDescription)
		}
		d.logger.Warn("overlay has no description", zap.String("overlay", o.Name))
	}

	return o, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

type registryXML struct {
	XMLName  xml.Name
	Overlays []overlayXML `xml:"overlay"`
}

type overlayXML struct {
	NameAttr    string    `xml:"name,attr"`
	SrcAttr     string    `xml:"src,attr"`
	ContactAttr string    `xml:"contact,attr"`
	Status      string    `xml:"status,attr"`
	Priority    string    `xml:"priority,attr"`
	Name        string    `xml:"name"`
	Source      sourceXML `xml:"source"`
	Owner       ownerXML  `xml:"owner"`
	Description string    `xml:"description"`
}

type sourceXML struct {
	Type string `xml:"type,attr"`
	URL  string `xml:",chardata"`
}

type ownerXML struct {
	Name  string `xml:"name"`
	Email string `xml:"email"`
}
