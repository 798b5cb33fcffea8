package pagemodel

import (
	"os"
	"strings"
	"testing"

	"github.com/ESN-MoRe/members-manager/internal/components/telemetry"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func fixture(t testing.TB) string {
	t.Helper()
	src, err := os.ReadFile("testdata/about-us.html")
	require.NoError(t, err)
	return string(src)
}

func parseFixture(t testing.TB) (*Document, *telemetry.Recorder, string) {
	t.Helper()
	src := fixture(t)
	rec := &telemetry.Recorder{}
	doc, err := Parse(src, WithTelemetry(rec))
	require.NoError(t, err)
	return doc, rec, src
}

func names(members []Member) []string {
	out := []string{}
	for _, m := range members {
		out = append(out, m.Name)
	}
	return out
}

var fixtureState = State{
	Board: {
		{Name: "Bob Verdi", Role: "Presidente", ImageFilename: "bob_verdi.jpg"},
		{Name: "Carla Neri", Role: "Coordinatrice Culture", ImageFilename: "carla_neri.png"},
	},
	Supporters: {
		{Name: "Dario Russo", Role: "Webmaster", ImageFilename: "dario_russo.jpg"},
	},
	Active: {
		{Name: "Anna Bianchi", Role: "Event Manager", ImageFilename: "anna_bianchi.jpg"},
		{Name: "Elena Gallo", Role: "Partnership Manager", ImageFilename: "elena_gallo.jpg"},
	},
	Mascots: {
		{Name: "Pippo", Role: "Mascotte", ImageFilename: "pippo.jpg", IsMascot: true},
	},
	Alumni: {},
}

func TestJSONState(t *testing.T) {
	doc, _, src := parseFixture(t)
	if diff := cmp.Diff(fixtureState, doc.JSONState()); diff != "" {
		t.Fatalf("state mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, src, doc.Output())
}

func TestFindSection(t *testing.T) {
	doc, _, _ := parseFixture(t)

	board, err := doc.FindSection(Board)
	require.NoError(t, err)
	require.Equal(t, "Board members 2026-2027", board.AttrOr("aria-label", ""))

	supporters, err := doc.FindSection(Supporters)
	require.NoError(t, err)
	require.Equal(t, "Board Supporters", supporters.AttrOr("aria-label", ""))

	_, err = doc.FindSection("STAFF")
	require.ErrorIs(t, err, ErrUnknownSection)

	partial, err := Parse(`<section aria-label="Active Members"><h2>Active</h2></section>`)
	require.NoError(t, err)
	_, err = partial.FindSection(Mascots)
	require.ErrorIs(t, err, ErrSectionNotFound)
	err = partial.AddMember(Active, Member{Name: "Anna"}, AddOptions{})
	require.ErrorIs(t, err, ErrListNotFound)
	require.Equal(t, State{Active: {}}, partial.JSONState())
}

func TestFindMemberSection(t *testing.T) {
	doc, _, _ := parseFixture(t)

	section, ok := doc.FindMemberSection("  anna BIANCHI ")
	require.True(t, ok)
	require.Equal(t, Active, section)

	section, ok = doc.FindMemberSection("Pippo")
	require.True(t, ok)
	require.Equal(t, Mascots, section)

	_, ok = doc.FindMemberSection("Nobody")
	require.False(t, ok)
}

func TestRoundTrip(t *testing.T) {
	doc, _, src := parseFixture(t)
	state := doc.JSONState()

	for _, section := range Sections {
		require.NoError(t, doc.UpdateSectionFromList(section, state[section]))
	}
	require.NotEqual(t, src, doc.Output())

	again, err := Parse(doc.Output())
	require.NoError(t, err)
	if diff := cmp.Diff(state, again.JSONState()); diff != "" {
		t.Fatalf("state changed by regeneration (-want +got):\n%s", diff)
	}

	// everything outside the member lists is untouched
	firstList := strings.Index(src, `<div role="list"`)
	require.Equal(t, src[:firstList], doc.Output()[:firstList])
	_, tail, found := strings.Cut(doc.Output(), "</section>\n  <p>Contact us")
	require.True(t, found)
	_, srcTail, _ := strings.Cut(src, "</section>\n  <p>Contact us")
	require.Equal(t, srcTail, tail)
}

func TestDuplicateGuard(t *testing.T) {
	doc, rec, src := parseFixture(t)

	err := doc.AddMember(Supporters, Member{Name: "anna bianchi", Role: "Webmaster"}, AddOptions{})
	require.NoError(t, err)
	require.Equal(t, src, doc.Output())
	require.True(t, rec.Has("warning", report_add_member))
}

func TestDuplicateGuardIgnoresMarkup(t *testing.T) {
	doc, rec, src := parseFixture(t)

	err := doc.AddMember(Alumni, Member{Name: "<b>Anna Bianchi</b>", Role: "Alumnus"}, AddOptions{})
	require.NoError(t, err)
	require.Equal(t, src, doc.Output())
	require.True(t, rec.Has("warning", report_add_member))
}

func TestEmptyNameRejected(t *testing.T) {
	doc, _, src := parseFixture(t)

	err := doc.AddMember(Alumni, Member{Name: "<Pippo>", Role: "Mascotte"}, AddOptions{})
	require.ErrorIs(t, err, ErrEmptyName)

	err = doc.UpdateSectionFromList(Alumni, []Member{{Name: "Franco Marino"}, {Name: " <i></i> "}})
	require.ErrorIs(t, err, ErrEmptyName)
	require.Equal(t, src, doc.Output())
}

func TestIdentity(t *testing.T) {
	require.Equal(t, "anna bianchi", Identity(" <b>Anna Bianchi</b> "))
	require.Equal(t, "", Identity("<Pippo>"))
	require.Equal(t, "bob & co", Identity("Bob &amp; Co"))
}

func TestReplaceAndMove(t *testing.T) {
	doc, _, _ := parseFixture(t)

	err := doc.AddMember(Supporters, Member{Name: "Anna Bianchi", Role: "Webmaster"}, AddOptions{ReplaceIfExists: true})
	require.NoError(t, err)

	section, ok := doc.FindMemberSection("Anna Bianchi")
	require.True(t, ok)
	require.Equal(t, Supporters, section)

	state := doc.JSONState()
	require.Equal(t, []string{"Anna Bianchi", "Dario Russo"}, names(state[Supporters]))
	require.Equal(t, []string{"Elena Gallo"}, names(state[Active]))
	require.Equal(t, 1, strings.Count(doc.Output(), ">Anna Bianchi</h3>"))
}

func TestInsertAfterMember(t *testing.T) {
	doc, _, _ := parseFixture(t)

	err := doc.AddMember(Board, Member{Name: "Franco Marino", Role: "Culture"}, AddOptions{
		AfterMemberName: "bob verdi",
		Position:        PositionStart,
	})
	require.NoError(t, err)

	board := doc.JSONState()[Board]
	require.Equal(t, []string{"Bob Verdi", "Franco Marino", "Carla Neri"}, names(board))
	require.Equal(t, Member{
		Name:          "Franco Marino",
		Role:          "Coordinatrice Culture",
		ImageFilename: "franco_marino.jpg",
	}, board[1])
	require.Contains(t, doc.Output(), `border-radius: 999px; background: rgba(0, 174, 239, 0.12); color: #00aeef;">Board 2026-2027</p>`)
}

func TestInsertPositions(t *testing.T) {
	doc, rec, _ := parseFixture(t)

	require.NoError(t, doc.AddMember(Active, Member{Name: "First"}, AddOptions{}))
	require.NoError(t, doc.AddMember(Active, Member{Name: "Last"}, AddOptions{Position: PositionEnd}))
	require.NoError(t, doc.AddMember(Active, Member{Name: "Fallback"}, AddOptions{
		AfterMemberName: "Dario Russo",
		Position:        PositionEnd,
	}))

	require.Equal(t,
		[]string{"First", "Anna Bianchi", "Elena Gallo", "Last", "Fallback"},
		names(doc.JSONState()[Active]),
	)
	require.True(t, rec.Has("warning", report_add_member))
}

func TestAddIsASplice(t *testing.T) {
	doc, _, src := parseFixture(t)

	err := doc.AddMember(Alumni, Member{Name: "Franco Marino", Role: "Culture"}, AddOptions{Position: PositionEnd})
	require.NoError(t, err)

	alumni := strings.Index(src, `<section aria-label="Alumni Network"`)
	closeList := alumni + strings.Index(src[alumni:], "</div>")
	card := renderCard(sectionConfigs[Alumni], Member{Name: "Franco Marino", Role: "Coordinatrice Culture"}, "Alumni Network")
	require.Equal(t, src[:closeList]+card+src[closeList:], doc.Output())
}

func TestRemoveMember(t *testing.T) {
	doc, _, src := parseFixture(t)

	require.NoError(t, doc.RemoveMember(" ELENA GALLO", RemoveOptions{}))

	start := strings.Index(src, `<article role='listitem' tabindex='0' data-accent='#ec008c' aria-label="Elena Gallo`)
	end := start + strings.Index(src[start:], "</article>") + len("</article>")
	indent := len("\n      ")
	require.Equal(t, src[:start-indent]+src[end:], doc.Output())
	require.Equal(t, []string{"Anna Bianchi"}, names(doc.JSONState()[Active]))
}

func TestRemoveDuplicates(t *testing.T) {
	doc, _, _ := parseFixture(t)

	// a second card for the same person, left behind by a hand edit
	require.NoError(t, doc.UpdateSectionFromList(Alumni, []Member{{Name: "Dario Russo", Role: "Alumnus"}}))
	require.NoError(t, doc.RemoveMember("dario russo", RemoveOptions{}))

	_, ok := doc.FindMemberSection("Dario Russo")
	require.False(t, ok)
}

func TestRemoveScoped(t *testing.T) {
	doc, _, src := parseFixture(t)

	err := doc.RemoveMember("Anna Bianchi", RemoveOptions{Section: Board})
	require.ErrorIs(t, err, ErrMemberNotFound)
	require.Equal(t, src, doc.Output())

	require.NoError(t, doc.RemoveMember("Anna Bianchi", RemoveOptions{Section: Active}))
	_, ok := doc.FindMemberSection("Anna Bianchi")
	require.False(t, ok)
}

func TestRemoveNotFound(t *testing.T) {
	doc, _, src := parseFixture(t)

	err := doc.RemoveMember("Nonexistent Person", RemoveOptions{})
	require.ErrorIs(t, err, ErrMemberNotFound)
	require.NotContains(t, err.Error(), "did you mean")
	require.Equal(t, src, doc.Output())

	err = doc.RemoveMember("Ana Bianchi", RemoveOptions{Section: Active})
	require.ErrorIs(t, err, ErrMemberNotFound)
	require.Contains(t, err.Error(), `did you mean "Anna Bianchi"?`)
	require.Equal(t, src, doc.Output())
}

func TestUpdateBoardYear(t *testing.T) {
	doc, _, src := parseFixture(t)
	stateBefore := doc.JSONState()

	require.NoError(t, doc.UpdateBoardYear("2027-2028"))
	out := doc.Output()

	require.Contains(t, out, `<section aria-labelledby="board-2027-2028-heading" aria-describedby="board-2027-2028-desc" aria-label="Board members 2027-2028" style="margin: 3rem 0;">`)
	require.Contains(t, out, `<h2 id="board-2027-2028-heading" style="font-size: 2rem; margin: 0;">Board 2027-2028</h2>`)
	require.Contains(t, out, `<p style="color: #555;">Sezione dedicata al Consiglio Direttivo 2027-2028 / Profiles of the elected Board for 2027-2028.</p>`)
	require.Contains(t, out, `<p id="board-2027-2028-desc" style="position: absolute; width: 1px; height: 1px; overflow: hidden; clip: rect(0 0 0 0);">Sezione dedicata al Consiglio Direttivo 2027-2028 / Profiles of the elected Board for 2027-2028.</p>`)
	require.Equal(t, 2, strings.Count(out, `color: #00aeef;">Board 2027-2028</p>`))
	require.NotContains(t, out, "2026-2027")

	// other sections are untouched
	_, rest, _ := strings.Cut(src, `<section aria-label="Board Supporters"`)
	require.True(t, strings.HasSuffix(out, rest))
	if diff := cmp.Diff(stateBefore, doc.JSONState()); diff != "" {
		t.Fatalf("members changed (-want +got):\n%s", diff)
	}

	// badges of new cards follow the heading
	require.NoError(t, doc.AddMember(Board, Member{Name: "Gina Costa", Role: "Tesoriera"}, AddOptions{}))
	require.Equal(t, 3, strings.Count(doc.Output(), `">Board 2027-2028</p>`))
}

func TestUpdateBoardYearWithoutBoard(t *testing.T) {
	doc, err := Parse(`<section aria-label="Active Members"><h2>Active Members</h2></section>`)
	require.NoError(t, err)
	err = doc.UpdateBoardYear("2027-2028")
	require.ErrorIs(t, err, ErrSectionNotFound)

	doc, err = Parse(`<h2>Board 2026</h2>`)
	require.NoError(t, err)
	err = doc.UpdateBoardYear("2027")
	require.ErrorIs(t, err, ErrSectionNotFound)
	require.Equal(t, `<h2>Board 2026</h2>`, doc.Output())
}
