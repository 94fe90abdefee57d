// Package discord announces go-live events in a Discord channel. Each tracked
// broadcaster has its own embed template; a login without one gets a plain
// diagnostic message instead.
package discord

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/pelletier/go-toml"
)

//go:embed templates.toml
var defaultTemplatesTOML []byte

// Footer is shared by every embed.
type Footer struct {
	Text    string `toml:"text"`
	IconURL string `toml:"icon_url"`
}

// Field is one name/value row of an embed.
type Field struct {
	Name   string `toml:"name"`
	Value  string `toml:"value"`
	Inline bool   `toml:"inline"`
}

// Template describes the announcement for one broadcaster.
type Template struct {
	Title        string  `toml:"title"`
	Description  string  `toml:"description"`
	Color        []int   `toml:"color"`
	Image        string  `toml:"image"`
	Thumbnail    string  `toml:"thumbnail"`
	AuthorName   string  `toml:"author_name"`
	AuthorUserID string  `toml:"author_user_id"`
	Fields       []Field `toml:"fields"`
}

// ColorValue packs the RGB triple the way Discord expects it.
func (t Template) ColorValue() int {
	if len(t.Color) != 3 {
		return 0
	}
	return t.Color[0]<<16 | t.Color[1]<<8 | t.Color[2]
}

func (t Template) validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return errors.New("title empty")
	}
	if len(t.Color) != 3 {
		return fmt.Errorf("color needs 3 components, got %d", len(t.Color))
	}
	for _, c := range t.Color {
		if c < 0 || c > 255 {
			return fmt.Errorf("color component %d out of range", c)
		}
	}
	for i, f := range t.Fields {
		if f.Name == "" || f.Value == "" {
			return fmt.Errorf("field %d: name and value required", i)
		}
	}
	return nil
}

type templateFile struct {
	Footer       Footer              `toml:"footer"`
	Broadcasters map[string]Template `toml:"broadcasters"`
}

// TemplateSet is the lookup table from login to announcement template.
type TemplateSet struct {
	Footer    Footer
	templates map[string]Template
}

// LoadTemplates parses a TOML template table.
func LoadTemplates(data []byte) (*TemplateSet, error) {
	var f templateFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	set := &TemplateSet{Footer: f.Footer, templates: make(map[string]Template, len(f.Broadcasters))}
	for login, tmpl := range f.Broadcasters {
		key := strings.ToLower(strings.TrimSpace(login))
		if key == "" {
			return nil, errors.New("template with empty login")
		}
		if err := tmpl.validate(); err != nil {
			return nil, fmt.Errorf("template %q: %w", key, err)
		}
		set.templates[key] = tmpl
	}
	return set, nil
}

// DefaultTemplates returns the built-in template table.
func DefaultTemplates() *TemplateSet {
	set, err := LoadTemplates(defaultTemplatesTOML)
	if err != nil {
		panic(fmt.Sprintf("embedded templates invalid: %v", err))
	}
	return set
}

// Lookup returns the template for login.
func (s *TemplateSet) Lookup(login string) (Template, bool) {
	t, ok := s.templates[strings.ToLower(strings.TrimSpace(login))]
	return t, ok
}

// Logins lists the logins that have a template, sorted.
func (s *TemplateSet) Logins() []string {
	out := make([]string, 0, len(s.templates))
	for l := range s.templates {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Render builds the embed for login. avatarURL becomes the author icon when
// non-empty. The bool is false when login has no template.
func (s *TemplateSet) Render(login, avatarURL string) (*discordgo.MessageEmbed, bool) {
	t, ok := s.Lookup(login)
	if !ok {
		return nil, false
	}
	embed := &discordgo.MessageEmbed{
		Type:        discordgo.EmbedTypeRich,
		Title:       t.Title,
		Description: t.Description,
		Color:       t.ColorValue(),
	}
	if s.Footer.Text != "" || s.Footer.IconURL != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: s.Footer.Text, IconURL: s.Footer.IconURL}
	}
	if t.Image != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: t.Image}
	}
	if t.Thumbnail != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: t.Thumbnail}
	}
	if t.AuthorName != "" {
		embed.Author = &discordgo.MessageEmbedAuthor{Name: t.AuthorName, IconURL: avatarURL}
	}
	for _, f := range t.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	return embed, true
}
