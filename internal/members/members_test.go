package members

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/ESN-MoRe/members-manager/internal/drupal/content"
	"github.com/ESN-MoRe/members-manager/internal/pagemodel"
	"github.com/ESN-MoRe/members-manager/internal/progress"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func fixture(t testing.TB) string {
	t.Helper()
	src, err := os.ReadFile("../pagemodel/testdata/about-us.html")
	require.NoError(t, err)
	return string(src)
}

func TestRoundTrip(t *testing.T) {
	src := fixture(t)

	state, err := ParseHTMLToJSON(src)
	require.NoError(t, err)
	require.Len(t, state, len(pagemodel.Sections))

	regenerated, err := GenerateHTMLFromJSON(src, state)
	require.NoError(t, err)

	again, err := ParseHTMLToJSON(regenerated)
	require.NoError(t, err)
	if diff := cmp.Diff(state, again); diff != "" {
		t.Fatalf("round trip changed the state (-want +got):\n%s", diff)
	}

	// a second pass over generated markup is a fixed point
	twice, err := GenerateHTMLFromJSON(regenerated, again)
	require.NoError(t, err)
	require.Equal(t, regenerated, twice)
}

func TestGenerateOnlyTouchesSubmittedSections(t *testing.T) {
	src := fixture(t)

	out, err := GenerateHTMLFromJSON(src, pagemodel.State{
		pagemodel.Alumni: {{Name: "Franco Marino", Role: "Alumnus"}},
	})
	require.NoError(t, err)

	alumni := strings.Index(src, `<section aria-label="Alumni Network"`)
	require.Equal(t, src[:alumni], out[:alumni])

	state, err := ParseHTMLToJSON(out)
	require.NoError(t, err)
	require.Equal(t, []pagemodel.Member{
		{Name: "Franco Marino", Role: "Alumnus", ImageFilename: "franco_marino.jpg"},
	}, state[pagemodel.Alumni])
}

func TestGenerateComparesCleanedNames(t *testing.T) {
	src := fixture(t)

	testCases := []struct {
		name  string
		state pagemodel.State
		err   error
	}{
		{
			name:  "name that is only markup",
			state: pagemodel.State{pagemodel.Alumni: {{Name: "<Pippo>", Role: "Mascotte"}}},
			err:   ErrEmptyName,
		},
		{
			name: "wrapped name duplicating another section",
			state: pagemodel.State{
				pagemodel.Active: {{Name: "Anna Bianchi", Role: "Event Manager"}},
				pagemodel.Alumni: {{Name: "<b>Anna Bianchi</b>", Role: "Alumnus"}},
			},
			err: ErrDuplicateMember,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := GenerateHTMLFromJSON(src, tc.state)
			require.ErrorIs(t, err, tc.err)
			require.Empty(t, out)
		})
	}
}

func TestGenerateRejectsMembersOfKeptSections(t *testing.T) {
	src := fixture(t)

	// ACTIVE is not submitted, so its Anna Bianchi card stays
	out, err := GenerateHTMLFromJSON(src, pagemodel.State{
		pagemodel.Alumni: {{Name: "<b>anna bianchi</b>", Role: "Alumnus"}},
	})
	require.ErrorIs(t, err, ErrDuplicateMember)
	require.ErrorContains(t, err, "ACTIVE")
	require.Empty(t, out)

	// moving her is fine once ACTIVE is submitted without her
	out, err = GenerateHTMLFromJSON(src, pagemodel.State{
		pagemodel.Active: {{Name: "Elena Gallo", Role: "Partnership Manager"}},
		pagemodel.Alumni: {{Name: "Anna Bianchi", Role: "Alumnus"}},
	})
	require.NoError(t, err)

	state, err := ParseHTMLToJSON(out)
	require.NoError(t, err)
	require.NoError(t, Validate(state))
	section, ok := findSection(state, "anna bianchi")
	require.True(t, ok)
	require.Equal(t, pagemodel.Alumni, section)
}

func findSection(state pagemodel.State, name string) (pagemodel.SectionType, bool) {
	for section, list := range state {
		for _, m := range list {
			if pagemodel.Identity(m.Name) == pagemodel.Identity(name) {
				return section, true
			}
		}
	}
	return "", false
}

func TestValidate(t *testing.T) {
	src := fixture(t)

	testCases := []struct {
		name  string
		state pagemodel.State
		err   error
	}{
		{
			name:  "unknown section",
			state: pagemodel.State{"STAFF": {{Name: "Anna"}}},
			err:   ErrUnknownSection,
		},
		{
			name:  "lowercase section",
			state: pagemodel.State{"active": {{Name: "Anna"}}},
			err:   ErrUnknownSection,
		},
		{
			name: "duplicate across sections",
			state: pagemodel.State{
				pagemodel.Active: {{Name: "Anna Bianchi"}},
				pagemodel.Alumni: {{Name: " anna bianchi"}},
			},
			err: ErrDuplicateMember,
		},
		{
			name:  "duplicate in a section",
			state: pagemodel.State{pagemodel.Board: {{Name: "Bob"}, {Name: "BOB"}}},
			err:   ErrDuplicateMember,
		},
		{
			name:  "empty name",
			state: pagemodel.State{pagemodel.Mascots: {{Name: "  ", Role: "Mascotte"}}},
			err:   ErrEmptyName,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := GenerateHTMLFromJSON(src, tc.state)
			require.ErrorIs(t, err, tc.err)
			require.Empty(t, out)
		})
	}
}

func TestGenerateMissingSection(t *testing.T) {
	_, err := GenerateHTMLFromJSON(`<section aria-label="Active Members"></section>`, pagemodel.State{
		pagemodel.Mascots: {{Name: "Pippo"}},
	})
	require.ErrorIs(t, err, pagemodel.ErrSectionNotFound)
}

func TestDiff(t *testing.T) {
	src := fixture(t)
	state, err := ParseHTMLToJSON(src)
	require.NoError(t, err)

	state[pagemodel.Active] = state[pagemodel.Active][:1]
	state[pagemodel.Alumni] = []pagemodel.Member{{Name: "Franco Marino", Role: "Alumnus"}}
	state[pagemodel.Mascots][0].ImageFilename = "pippo_2027.jpg"

	out, err := GenerateHTMLFromJSON(src, state)
	require.NoError(t, err)

	preview, err := Diff(context.Background(), src, out)
	require.NoError(t, err)
	require.Equal(t, src, preview.OldHTML)
	require.Equal(t, out, preview.NewHTML)
	require.Equal(t, ImageDiff{
		ToUpload: []string{"franco_marino.jpg", "pippo_2027.jpg"},
		ToDelete: []string{"elena_gallo.jpg", "pippo.jpg"},
	}, preview.Images)
	require.Equal(t, MemberDiff{
		Added:   []string{"Franco Marino"},
		Removed: []string{"Elena Gallo"},
	}, preview.Members)

	same, err := Diff(context.Background(), src, src)
	require.NoError(t, err)
	require.Empty(t, same.Images.ToUpload)
	require.Empty(t, same.Images.ToDelete)
	require.NotNil(t, same.Images.ToUpload)
}

type stubContent struct {
	html  string
	err   error
	calls int
}

func (s *stubContent) GetContent(ctx context.Context, log progress.LogFunc, opts ...content.GetOption) (string, error) {
	s.calls++
	log.Log("fetching")
	return s.html, s.err
}

func TestService(t *testing.T) {
	src := fixture(t)
	stub := &stubContent{html: src}
	service := NewService(stub, nil)
	ctx := context.Background()

	var logs []string
	log := func(msg string) { logs = append(logs, msg) }

	state, err := service.Current(ctx, log)
	require.NoError(t, err)
	require.Len(t, state[pagemodel.Board], 2)
	require.Equal(t, []string{"fetching"}, logs)

	state[pagemodel.Board] = append(state[pagemodel.Board], pagemodel.Member{Name: "Gina Costa", Role: "Culture"})
	preview, err := service.Preview(ctx, state, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"Gina Costa"}, preview.Members.Added)
	require.Contains(t, preview.NewHTML, ">Coordinatrice Culture</p>")

	html, err := service.RollBoardYear(ctx, " 2027-2028 ", nil)
	require.NoError(t, err)
	require.Contains(t, html, ">Board 2027-2028</h2>")

	_, err = service.RollBoardYear(ctx, "", nil)
	require.Error(t, err)
	require.Equal(t, 3, stub.calls)
}

func TestServiceUpstreamFailure(t *testing.T) {
	upstream := errors.New("upstream down")
	service := NewService(&stubContent{err: upstream}, nil)

	_, err := service.Current(context.Background(), nil)
	require.ErrorIs(t, err, upstream)
	_, err = service.Preview(context.Background(), pagemodel.State{}, nil)
	require.ErrorIs(t, err, upstream)
	_, err = service.RollBoardYear(context.Background(), "2030", nil)
	require.ErrorIs(t, err, upstream)
}
