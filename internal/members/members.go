// Package members converts the members page to and from the member lists edited by the
// UI, and prepares previews of pending changes.
package members

import (
	"context"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/ESN-MoRe/members-manager/internal/components/telemetry"
	"github.com/ESN-MoRe/members-manager/internal/drupal/content"
	"github.com/ESN-MoRe/members-manager/internal/pagemodel"
	"github.com/ESN-MoRe/members-manager/internal/progress"
	"github.com/ESN-MoRe/members-manager/lib/htmlutil"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("members-manager/internal/members")

var (
	ErrUnknownSection  = errors.New("unknown section")
	ErrDuplicateMember = errors.New("duplicate member")
	ErrEmptyName       = pagemodel.ErrEmptyName
)

// ParseHTMLToJSON reads the member lists out of a page.
func ParseHTMLToJSON(html string) (pagemodel.State, error) {
	doc, err := pagemodel.Parse(html)
	if err != nil {
		return nil, err
	}
	return doc.JSONState(), nil
}

// Validate checks that every section exists and that every member has a name and
// appears only once across all sections. Names are compared by what their cards show,
// markup stripped.
func Validate(state pagemodel.State) error {
	for key := range state {
		if t, ok := pagemodel.ParseSectionType(string(key)); !ok || t != key {
			return fmt.Errorf("%w: %q", ErrUnknownSection, key)
		}
	}
	seen := map[string]pagemodel.SectionType{}
	for _, section := range pagemodel.Sections {
		for i, m := range state[section] {
			id := pagemodel.Identity(m.Name)
			if id == "" {
				return fmt.Errorf("%w: %s #%d", ErrEmptyName, section, i+1)
			}
			if other, ok := seen[id]; ok {
				return fmt.Errorf("%w: '%s' is in both %s and %s", ErrDuplicateMember, m.Name, other, section)
			}
			seen[id] = section
		}
	}
	return nil
}

// GenerateHTMLFromJSON rewrites the member list of every section present in state,
// sections missing from state keep their current cards. A submitted member who also has
// a card in a kept section is rejected with ErrDuplicateMember.
func GenerateHTMLFromJSON(originalHTML string, state pagemodel.State, opts ...pagemodel.Option) (string, error) {
	err := Validate(state)
	if err != nil {
		return "", err
	}
	doc, err := pagemodel.Parse(originalHTML, opts...)
	if err != nil {
		return "", err
	}
	err = checkKeptSections(doc.JSONState(), state)
	if err != nil {
		return "", err
	}
	for _, section := range pagemodel.Sections {
		members, ok := state[section]
		if !ok {
			continue
		}
		err = doc.UpdateSectionFromList(section, members)
		if err != nil {
			return "", err
		}
	}
	return doc.Output(), nil
}

// checkKeptSections fails when a member of state also has a card in a section of current
// that state leaves untouched.
func checkKeptSections(current, state pagemodel.State) error {
	kept := map[string]pagemodel.SectionType{}
	for _, section := range pagemodel.Sections {
		if _, submitted := state[section]; submitted {
			continue
		}
		for _, m := range current[section] {
			kept[pagemodel.Identity(m.Name)] = section
		}
	}
	for _, section := range pagemodel.Sections {
		for _, m := range state[section] {
			if other, ok := kept[pagemodel.Identity(m.Name)]; ok {
				return fmt.Errorf("%w: '%s' is already in %s, which is not being edited", ErrDuplicateMember, m.Name, other)
			}
		}
	}
	return nil
}

type ImageDiff struct {
	// ToUpload are pictures referenced by the new page only.
	ToUpload []string `json:"toUpload"`
	// ToDelete are pictures no longer referenced by the new page.
	ToDelete []string `json:"toDelete"`
}

type MemberDiff struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}

type Preview struct {
	OldHTML string     `json:"oldHtml"`
	NewHTML string     `json:"newHtml"`
	Images  ImageDiff  `json:"images"`
	Members MemberDiff `json:"members"`
}

const (
	cardImagesXPath = "//article[@role='listitem']//img"
	cardNamesXPath  = "//article[@role='listitem']//h3"
)

func cardImages(ctx context.Context, src string) ([]string, error) {
	root, err := htmlutil.Parse(src)
	if err != nil {
		return nil, err
	}
	sources, err := htmlutil.QueryAttrs(ctx, root, cardImagesXPath, "src")
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(sources))
	for _, src := range sources {
		if src == "" {
			continue
		}
		out = append(out, path.Base(src))
	}
	return out, nil
}

func cardNames(ctx context.Context, src string) ([]string, error) {
	root, err := htmlutil.Parse(src)
	if err != nil {
		return nil, err
	}
	return htmlutil.QueryTexts(ctx, root, cardNamesXPath)
}

// difference returns the sorted, deduplicated values of a missing from b.
func difference(a, b []string, key func(string) string) []string {
	present := map[string]bool{}
	for _, v := range b {
		present[key(v)] = true
	}
	out := []string{}
	for _, v := range a {
		k := key(v)
		if present[k] {
			continue
		}
		present[k] = true
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

func same(s string) string {
	return s
}

func nameKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Diff compares two versions of the page.
func Diff(ctx context.Context, oldHTML, newHTML string) (Preview, error) {
	ctx, span := tracer.Start(ctx, "Diff")
	defer span.End()

	oldImages, err := cardImages(ctx, oldHTML)
	if err != nil {
		return Preview{}, err
	}
	newImages, err := cardImages(ctx, newHTML)
	if err != nil {
		return Preview{}, err
	}
	oldNames, err := cardNames(ctx, oldHTML)
	if err != nil {
		return Preview{}, err
	}
	newNames, err := cardNames(ctx, newHTML)
	if err != nil {
		return Preview{}, err
	}

	preview := Preview{
		OldHTML: oldHTML,
		NewHTML: newHTML,
		Images: ImageDiff{
			ToUpload: difference(newImages, oldImages, same),
			ToDelete: difference(oldImages, newImages, same),
		},
		Members: MemberDiff{
			Added:   difference(newNames, oldNames, nameKey),
			Removed: difference(oldNames, newNames, nameKey),
		},
	}
	span.SetAttributes(
		attribute.Int("images.to_upload", len(preview.Images.ToUpload)),
		attribute.Int("images.to_delete", len(preview.Images.ToDelete)),
	)
	return preview, nil
}

type Content interface {
	GetContent(ctx context.Context, log progress.LogFunc, opts ...content.GetOption) (string, error)
}

// Service runs member operations against the live page.
type Service struct {
	content Content
	tel     telemetry.API
}

func NewService(content Content, tel telemetry.API) *Service {
	return &Service{
		content: content,
		tel:     telemetry.NewScopedAPI("members", telemetry.OrDefault(tel)),
	}
}

// Current returns the member lists of the live page.
func (s *Service) Current(ctx context.Context, log progress.LogFunc) (pagemodel.State, error) {
	html, err := s.content.GetContent(ctx, log)
	if err != nil {
		return nil, err
	}
	return ParseHTMLToJSON(html)
}

// Preview regenerates the live page with state and compares it with the current one.
func (s *Service) Preview(ctx context.Context, state pagemodel.State, log progress.LogFunc) (Preview, error) {
	ctx, span := tracer.Start(ctx, "Preview")
	defer span.End()

	oldHTML, err := s.content.GetContent(ctx, log)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch content")
		return Preview{}, err
	}
	newHTML, err := GenerateHTMLFromJSON(oldHTML, state, pagemodel.WithTelemetry(s.tel))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate html")
		return Preview{}, err
	}
	return Diff(ctx, oldHTML, newHTML)
}

// RollBoardYear returns the live page moved to a new board mandate.
func (s *Service) RollBoardYear(ctx context.Context, year string, log progress.LogFunc) (string, error) {
	year = strings.TrimSpace(year)
	if year == "" {
		return "", fmt.Errorf("empty year")
	}
	html, err := s.content.GetContent(ctx, log)
	if err != nil {
		return "", err
	}
	doc, err := pagemodel.Parse(html, pagemodel.WithTelemetry(s.tel))
	if err != nil {
		return "", err
	}
	err = doc.UpdateBoardYear(year)
	if err != nil {
		return "", err
	}
	return doc.Output(), nil
}
