// Package pagemodel reads and rewrites the members page: a hand authored HTML fragment
// made of sections (board, supporters, active members, mascots and alumni), each holding
// a list of member cards.
//
// Sections are located by their headings and aria labels, which are the only stable
// features of the page. Every edit is a splice of the parsed source, so the output
// is identical to the input outside of the touched elements.
package pagemodel

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/ESN-MoRe/members-manager/internal/components/telemetry"
	"github.com/ESN-MoRe/members-manager/lib/htmledit"
)

var (
	ErrUnknownSection  = errors.New("unknown section")
	ErrSectionNotFound = errors.New("section not found")
	ErrListNotFound    = errors.New("member list not found")
	ErrMemberNotFound  = errors.New("member not found")
	ErrMissingBadge    = errors.New("missing badge configuration")
	ErrEmptyName       = errors.New("member without a name")
)

const (
	report_add_member    = "document.add-member"
	report_remove_member = "document.remove-member"
	report_update        = "document.update-section"
	report_board_year    = "document.update-board-year"
)

type Member struct {
	Name          string `json:"name"`
	Role          string `json:"role"`
	ImageFilename string `json:"imageFilename,omitempty"`
	// IsMascot is set for the cards of the MASCOTS section, it does not change how a
	// card is rendered.
	IsMascot bool `json:"isMascot,omitempty"`
}

// State maps every section present in a page to its members in page order.
type State map[SectionType][]Member

type Position string

const (
	PositionStart Position = "start"
	PositionEnd   Position = "end"
)

type AddOptions struct {
	// AfterMemberName places the new card right after this member of the target section,
	// Position is used when it is empty or not found.
	AfterMemberName string
	// Position defaults to PositionStart.
	Position        Position
	ReplaceIfExists bool
}

type RemoveOptions struct {
	// Section restricts the removal to one section, the whole page is searched when empty.
	Section SectionType
}

type Document struct {
	doc *htmledit.Document
	tel telemetry.API
}

type Option func(d *Document)

func WithTelemetry(tel telemetry.API) Option {
	return func(d *Document) {
		d.tel = telemetry.NewScopedAPI("page_document", telemetry.OrDefault(tel))
	}
}

func Parse(src string, opts ...Option) (*Document, error) {
	doc, err := htmledit.Parse(src)
	if err != nil {
		return nil, err
	}
	d := &Document{
		doc: doc,
		tel: telemetry.NewScopedAPI("page_document", telemetry.SlogAPI{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func identity(name string) string {
	return Identity(name)
}

var (
	isSection = htmledit.Tag("section")
	isCard    = htmledit.And(htmledit.Tag("article"), htmledit.AttrEquals("role", "listitem"))
	isList    = htmledit.AttrEquals("role", "list")
	isHidden  = htmledit.And(htmledit.Tag("p"), htmledit.AttrContains("style", "clip: rect"))
	isBadge   = htmledit.And(htmledit.Tag("p"), htmledit.AttrContains("style", "border-radius: 999px"))
)

func config(t SectionType) (sectionConfig, error) {
	cfg, ok := sectionConfigs[t]
	if !ok {
		return sectionConfig{}, fmt.Errorf("%w: %q", ErrUnknownSection, t)
	}
	return cfg, nil
}

// FindSection returns the container of a section: for the board the first section whose
// heading mentions "Board", for the others the first whose aria-label contains the
// section's label.
func (d *Document) FindSection(t SectionType) (*htmledit.Node, error) {
	cfg, err := config(t)
	if err != nil {
		return nil, err
	}
	for _, section := range d.doc.Root().Find(isSection) {
		if t == Board {
			heading := section.FindFirst(htmledit.Tag("h2"))
			if heading != nil && strings.Contains(heading.Text(), "Board") {
				return section, nil
			}
			continue
		}
		if strings.Contains(section.AttrOr("aria-label", ""), cfg.ariaLabel) {
			return section, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrSectionNotFound, t)
}

func (d *Document) findList(t SectionType) (section, list *htmledit.Node, err error) {
	section, err = d.FindSection(t)
	if err != nil {
		return nil, nil, err
	}
	list = section.FindFirst(isList)
	if list == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrListNotFound, t)
	}
	return section, list, nil
}

func cardName(card *htmledit.Node) string {
	heading := card.FindFirst(htmledit.Tag("h3"))
	if heading == nil {
		return ""
	}
	return heading.Text()
}

func cardNames(cards []*htmledit.Node) []string {
	names := make([]string, 0, len(cards))
	for _, card := range cards {
		names = append(names, strings.TrimSpace(cardName(card)))
	}
	return names
}

func findCard(scope *htmledit.Node, name string) *htmledit.Node {
	id := identity(name)
	for _, card := range scope.Find(isCard) {
		if identity(cardName(card)) == id {
			return card
		}
	}
	return nil
}

// FindMemberSection returns the first section holding a card for name. Sections missing
// from the page are skipped.
func (d *Document) FindMemberSection(name string) (SectionType, bool) {
	for _, t := range Sections {
		section, err := d.FindSection(t)
		if err != nil {
			continue
		}
		if findCard(section, name) != nil {
			return t, true
		}
	}
	return "", false
}

func badgeFor(t SectionType, cfg sectionConfig, section *htmledit.Node) (string, error) {
	if t == Board {
		heading := section.FindFirst(htmledit.Tag("h2"))
		if heading == nil || heading.Text() == "" {
			return "Board", nil
		}
		return heading.Text(), nil
	}
	if cfg.badge == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingBadge, t)
	}
	return cfg.badge, nil
}

// prepareCard renders the card of m for section t.
func (d *Document) prepareCard(t SectionType, section *htmledit.Node, m Member) (string, error) {
	if CleanName(m.Name) == "" {
		return "", fmt.Errorf("%w: %q in %s", ErrEmptyName, m.Name, t)
	}
	cfg, err := config(t)
	if err != nil {
		return "", err
	}
	badge, err := badgeFor(t, cfg, section)
	if err != nil {
		return "", err
	}
	m.Role = DisplayRole(m.Role)
	return renderCard(cfg, m, badge), nil
}

// AddMember adds a card for m to section t. A member already present anywhere in the page
// is left alone with a warning unless ReplaceIfExists is set, in which case every
// existing card for them is removed first, possibly from another section.
func (d *Document) AddMember(t SectionType, m Member, opts AddOptions) error {
	section, _, err := d.findList(t)
	if err != nil {
		return err
	}
	card, err := d.prepareCard(t, section, m)
	if err != nil {
		return err
	}

	existing, found := d.FindMemberSection(m.Name)
	if found {
		if !opts.ReplaceIfExists {
			d.tel.ReportWarning(
				report_add_member,
				fmt.Errorf("member '%s' is already in section '%s', not adding a duplicate", m.Name, existing),
			)
			return nil
		}
		err = d.RemoveMember(m.Name, RemoveOptions{})
		if err != nil {
			return err
		}
		d.tel.ReportDebug("replacing member", "name", m.Name, "from", existing)
	}

	// removal rebuilt the tree
	_, list, err := d.findList(t)
	if err != nil {
		return err
	}

	position := opts.Position
	if position == "" {
		position = PositionStart
	}

	var after *htmledit.Node
	if opts.AfterMemberName != "" {
		after = findCard(list, opts.AfterMemberName)
		if after == nil {
			d.tel.ReportWarning(
				report_add_member,
				withHint(
					fmt.Errorf("target '%s' not found in %s, adding at %s", opts.AfterMemberName, t, position),
					opts.AfterMemberName,
					cardNames(list.Find(isCard)),
				),
			)
		}
	}

	err = d.doc.Edit(func(b *htmledit.Batch) {
		switch {
		case after != nil:
			b.InsertAfter(after, card)
		case position == PositionEnd:
			b.Append(list, card)
		default:
			b.Prepend(list, card)
		}
	})
	if err != nil {
		return err
	}
	d.tel.ReportDebug("added member", "name", m.Name, "section", t, "role", DisplayRole(m.Role))
	return nil
}

// RemoveMember removes every card for name within the scope. Finding no card is an error
// and leaves the page unchanged.
func (d *Document) RemoveMember(name string, opts RemoveOptions) error {
	scope := d.doc.Root()
	scopeName := "all sections"
	if opts.Section != "" {
		section, err := d.FindSection(opts.Section)
		if err != nil {
			return err
		}
		scope = section
		scopeName = fmt.Sprintf("section %s", opts.Section)
	}

	id := identity(name)
	cards := scope.Find(isCard)
	var matches []*htmledit.Node
	for _, card := range cards {
		if identity(cardName(card)) == id {
			matches = append(matches, card)
		}
	}
	if len(matches) == 0 {
		return withHint(
			fmt.Errorf("%w: %s in %s", ErrMemberNotFound, name, scopeName),
			name,
			cardNames(cards),
		)
	}

	err := d.doc.Edit(func(b *htmledit.Batch) {
		for _, card := range matches {
			b.RemoveWithIndent(card)
		}
	})
	if err != nil {
		return err
	}
	d.tel.ReportDebug("removed member", "name", name, "scope", scopeName, "count", len(matches))
	return nil
}

// UpdateSectionFromList replaces the whole member list of section t with cards for
// members, in order.
func (d *Document) UpdateSectionFromList(t SectionType, members []Member) error {
	section, list, err := d.findList(t)
	if err != nil {
		return err
	}

	var sb strings.Builder
	for _, m := range members {
		card, err := d.prepareCard(t, section, m)
		if err != nil {
			return err
		}
		sb.WriteString(card)
	}

	err = d.doc.Edit(func(b *htmledit.Batch) {
		b.SetInnerHTML(list, sb.String())
	})
	if err != nil {
		return fmt.Errorf("%s: %w", t, err)
	}
	d.tel.ReportDebug("updated section", "section", t, "members", len(members))
	return nil
}

func boardDescription(year string) string {
	return fmt.Sprintf("Sezione dedicata al Consiglio Direttivo %s / Profiles of the elected Board for %s.", year, year)
}

func parentIsDiv(n *htmledit.Node) bool {
	return n.Parent != nil && n.Parent.Type == htmledit.ElementNode && n.Parent.Tag == "div"
}

// UpdateBoardYear moves the board section to a new mandate: its heading, the ids and
// aria attributes referencing it, the hidden and visible descriptions and the badge of
// every board card.
func (d *Document) UpdateBoardYear(year string) error {
	var heading *htmledit.Node
	for _, h := range d.doc.Root().Find(htmledit.Tag("h2")) {
		if strings.Contains(h.Text(), "Board") {
			heading = h
			break
		}
	}
	if heading == nil {
		return fmt.Errorf("%w: no board heading", ErrSectionNotFound)
	}
	section := heading.Closest(isSection)
	if section == nil {
		return fmt.Errorf("%w: board heading is outside of a section", ErrSectionNotFound)
	}

	headingId := fmt.Sprintf("board-%s-heading", year)
	descId := fmt.Sprintf("board-%s-desc", year)
	description := boardDescription(year)
	badge := "Board " + year

	desc := section.FindFirst(isHidden)
	subtitle := section.FindFirst(htmledit.And(htmledit.Tag("p"), parentIsDiv))

	err := d.doc.Edit(func(b *htmledit.Batch) {
		b.SetText(heading, badge)
		b.SetAttr(heading, "id", headingId)

		b.SetAttr(section, "aria-labelledby", headingId)
		b.SetAttr(section, "aria-describedby", descId)
		b.SetAttr(section, "aria-label", "Board members "+year)

		if desc != nil {
			b.SetAttr(desc, "id", descId)
			b.SetText(desc, description)
		}
		if subtitle != nil && subtitle != desc && !strings.Contains(subtitle.AttrOr("style", ""), "clip: rect") {
			b.SetText(subtitle, description)
		}

		for _, p := range section.Find(isBadge) {
			b.SetText(p, badge)
		}
	})
	if err != nil {
		d.tel.ReportBroken(report_board_year, err)
		return err
	}
	d.tel.ReportDebug("updated board year", "year", year)
	return nil
}

// lastParagraph returns the first <p> that is the last <p> among its siblings.
func lastParagraph(card *htmledit.Node) *htmledit.Node {
	for _, p := range card.Find(htmledit.Tag("p")) {
		last := true
		for _, sibling := range p.NextElementSiblings() {
			if sibling.Tag == "p" {
				last = false
				break
			}
		}
		if last {
			return p
		}
	}
	return nil
}

func readCard(card *htmledit.Node) Member {
	m := Member{Name: strings.TrimSpace(cardName(card))}
	if p := lastParagraph(card); p != nil {
		m.Role = strings.TrimSpace(p.Text())
	}
	if img := card.FindFirst(htmledit.Tag("img")); img != nil {
		if src := img.AttrOr("src", ""); src != "" {
			m.ImageFilename = path.Base(src)
		}
	}
	return m
}

// JSONState reads the members of every section found in the page.
func (d *Document) JSONState() State {
	state := State{}
	for _, t := range Sections {
		section, err := d.FindSection(t)
		if err != nil {
			continue
		}
		cards := section.Find(isCard)
		members := make([]Member, 0, len(cards))
		for _, card := range cards {
			m := readCard(card)
			m.IsMascot = t == Mascots
			members = append(members, m)
		}
		state[t] = members
	}
	return state
}

// Output returns the current HTML of the page.
func (d *Document) Output() string {
	return d.doc.Source()
}
