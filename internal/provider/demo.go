package provider

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/datasynth/datasynth/internal/schema"
)

//go:embed templates.json
var templatesJSON []byte

type template struct {
	Name     string        `json:"name"`
	Keywords []string      `json:"keywords"`
	Domain   string        `json:"domain"`
	Fields   schema.Fields `json:"fields"`
}

// DemoClient answers from built-in templates picked by keywords of the description.
// It never touches the network.
type DemoClient struct {
	templates []template
}

// NewDemo returns a DemoClient over the embedded templates.
func NewDemo() *DemoClient {
	var ts []template
	if err := json.Unmarshal(templatesJSON, &ts); err != nil {
		panic(fmt.Sprintf("invalid embedded demo templates: %v", err))
	}
	return &DemoClient{templates: ts}
}

// Template returns the name of the template chosen for description.
// The first template with a keyword contained in the description wins, the last one is the default.
func (c *DemoClient) Template(description string) string {
	return c.pick(description).Name
}

func (c *DemoClient) pick(description string) template {
	desc := strings.ToLower(description)
	for _, t := range c.templates {
		for _, kw := range t.Keywords {
			if strings.Contains(desc, kw) {
				return t
			}
		}
	}
	return c.templates[len(c.templates)-1]
}

// GenerateText implements Client.
func (c *DemoClient) GenerateText(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	t := c.pick(req.Description)
	data, err := json.MarshalIndent(struct {
		Domain string        `json:"domain"`
		Fields schema.Fields `json:"fields"`
	}{t.Domain, t.Fields}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("could not encode demo template %q: %v", t.Name, err)
	}
	return string(data), nil
}
