package ui

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"sync"
)

// Element is a vendor UI handle mounted into a container.
type Element interface {
	Kind() string
	HTML() template.HTML
	Destroy()
}

// Document is the checkout page the browser-style gateways render into.
// It tracks injected vendor scripts and the containers addressable by id.
type Document struct {
	mu         sync.Mutex
	scripts    []string
	containers map[string]*Container
	order      []string
}

func NewDocument(containerIDs ...string) *Document {
	d := &Document{containers: make(map[string]*Container)}
	for _, id := range containerIDs {
		d.AddContainer(id)
	}
	return d
}

// AddContainer creates the container if it does not exist yet.
func (d *Document) AddContainer(id string) *Container {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.containers[id]; ok {
		return c
	}
	c := &Container{id: id}
	d.containers[id] = c
	d.order = append(d.order, id)
	return c
}

// Container looks up a container by id.
func (d *Document) Container(id string) (*Container, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.containers[id]
	return c, ok
}

// HasScript reports whether src was already injected.
func (d *Document) HasScript(src string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range d.scripts {
		if s == src {
			return true
		}
	}
	return false
}

// InjectScript adds a script tag once. It returns false if already present.
func (d *Document) InjectScript(src string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range d.scripts {
		if s == src {
			return false
		}
	}
	d.scripts = append(d.scripts, src)
	return true
}

// Scripts returns the injected script sources in injection order.
func (d *Document) Scripts() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.scripts...)
}

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
{{range .Scripts}}<script src="{{.}}" async></script>
{{end}}</head>
<body>
{{range .Containers}}<div id="{{.ID}}">{{.HTML}}</div>
{{end}}</body>
</html>
`))

type pageContainer struct {
	ID   string
	HTML template.HTML
}

// Render writes the full checkout page.
func (d *Document) Render(w io.Writer) error {
	d.mu.Lock()
	containers := make([]pageContainer, 0, len(d.order))
	for _, id := range d.order {
		containers = append(containers, pageContainer{ID: id, HTML: d.containers[id].HTML()})
	}
	scripts := append([]string(nil), d.scripts...)
	d.mu.Unlock()

	return pageTmpl.Execute(w, struct {
		Scripts    []string
		Containers []pageContainer
	}{scripts, containers})
}

// Container is an addressable region of the document.
type Container struct {
	id       string
	mu       sync.Mutex
	content  template.HTML
	elements map[string]Element
	messages map[string]string
}

func (c *Container) ID() string {
	return c.id
}

// SetContent replaces the container's markup. Previously mounted elements
// and messages are detached, as assigning innerHTML would.
func (c *Container) SetContent(html template.HTML) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.content = html
	c.elements = nil
	c.messages = nil
}

// Content returns the raw markup without mounted elements.
func (c *Container) Content() template.HTML {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.content
}

// Mount attaches el to the node with id slot. An empty slot mounts into the
// container root.
func (c *Container) Mount(slot string, el Element) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if slot != "" && !strings.Contains(string(c.content), `id="`+slot+`"`) {
		return fmt.Errorf("mount target #%s not found in container %s", slot, c.id)
	}
	if c.elements == nil {
		c.elements = make(map[string]Element)
	}
	c.elements[slot] = el
	return nil
}

// Unmount detaches whatever is mounted at slot.
func (c *Container) Unmount(slot string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.elements, slot)
}

// Element returns the element mounted at slot.
func (c *Container) Element(slot string) (Element, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.elements[slot]
	return el, ok
}

// SetMessage sets the text shown inside the node with id slot.
func (c *Container) SetMessage(slot, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.messages == nil {
		c.messages = make(map[string]string)
	}
	c.messages[slot] = text
}

// Message returns the text set for slot.
func (c *Container) Message(slot string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.messages[slot]
}

// Clear empties the container.
func (c *Container) Clear() {
	c.SetContent("")
}

// HTML returns the container markup with mounted elements and messages
// spliced into their slots.
func (c *Container) HTML() template.HTML {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := string(c.content)
	for slot, text := range c.messages {
		out = insertInto(out, slot, template.HTMLEscapeString(text))
	}
	for slot, el := range c.elements {
		if slot == "" {
			continue
		}
		out = insertInto(out, slot, string(el.HTML()))
	}
	if root, ok := c.elements[""]; ok {
		out += string(root.HTML())
	}
	return template.HTML(out)
}

// insertInto places inner right after the opening tag carrying id="slot".
func insertInto(doc, slot, inner string) string {
	idx := strings.Index(doc, `id="`+slot+`"`)
	if idx < 0 {
		return doc
	}
	end := strings.Index(doc[idx:], ">")
	if end < 0 {
		return doc
	}
	pos := idx + end + 1
	return doc[:pos] + inner + doc[pos:]
}
