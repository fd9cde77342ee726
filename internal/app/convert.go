package app

import (
	"regexp"
	"strings"
	"time"

	"github.com/rtuszik/discogsdash/internal/constants"
	"github.com/rtuszik/discogsdash/internal/discogs"
	"github.com/rtuszik/discogsdash/internal/domain"
)

// artistSuffix matches the numeric disambiguation the catalog appends to
// duplicate artist names, e.g. "Nirvana (2)".
var artistSuffix = regexp.MustCompile(`\s+\(\d+\)$`)

// ConvertRelease maps an API release onto a collection item. Valuation
// fields are left for the orchestrator.
func ConvertRelease(r discogs.Release) *domain.CollectionItem {
	info := r.BasicInformation

	releaseID := r.ID
	if releaseID == 0 {
		releaseID = info.ID
	}

	cover := info.CoverImage
	if cover == "" {
		cover = info.Thumb
	}

	item := &domain.CollectionItem{
		InstanceID:    r.InstanceID,
		ReleaseID:     releaseID,
		Artist:        artistCredit(info.Artists),
		Title:         info.Title,
		Year:          info.Year,
		Format:        formatDescription(info.Formats),
		Genres:        domain.StringSlice(info.Genres),
		Styles:        domain.StringSlice(info.Styles),
		CoverImageURL: cover,
		DateAdded:     parseDateAdded(r.DateAdded),
		FolderID:      r.FolderID,
		Rating:        r.Rating,
	}

	for _, n := range r.Notes {
		switch n.FieldID {
		case constants.NoteFieldMediaCondition:
			item.Condition = n.Value
		case constants.NoteFieldFreeText:
			item.Notes = n.Value
		}
	}

	item.Normalize()
	return item
}

func artistCredit(artists []discogs.Artist) string {
	var b strings.Builder
	for i, a := range artists {
		name := a.ANV
		if name == "" {
			name = a.Name
		}
		b.WriteString(artistSuffix.ReplaceAllString(name, ""))

		if i == len(artists)-1 {
			break
		}
		join := strings.TrimSpace(a.Join)
		switch join {
		case "", ",":
			b.WriteString(", ")
		default:
			b.WriteString(" " + join + " ")
		}
	}
	return b.String()
}

// formatDescription renders formats as "Vinyl, LP, Album", joining several
// formats of a box set with " + ".
func formatDescription(formats []discogs.Format) string {
	parts := make([]string, 0, len(formats))
	for _, f := range formats {
		fields := append([]string{f.Name}, f.Descriptions...)
		parts = append(parts, strings.Join(fields, ", "))
	}
	return strings.Join(parts, " + ")
}

func parseDateAdded(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
