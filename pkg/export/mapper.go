package export

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/pubops/admanager-site-export/pkg/admanager"
)

// ErrUnknownFormat is returned for output formats outside the fixed set.
var ErrUnknownFormat = errors.New("unknown output format")

// OutputFormat selects the display-row shape for imported sites.
type OutputFormat int

const (
	// FormatSummary maps a site to URL and approval status.
	FormatSummary OutputFormat = iota

	// FormatDetailed maps every display field.
	FormatDetailed
)

// String implements fmt.Stringer.
func (f OutputFormat) String() string {
	switch f {
	case FormatSummary:
		return "summary"
	case FormatDetailed:
		return "detailed"
	default:
		return "unknown"
	}
}

// ParseFormat resolves a format name to its typed value.
func ParseFormat(name string) (OutputFormat, error) {
	switch name {
	case "summary", "":
		return FormatSummary, nil
	case "detailed":
		return FormatDetailed, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// Header returns the destination header row for a format.
func Header(format OutputFormat) ([]string, error) {
	switch format {
	case FormatSummary:
		return []string{"URL", "Approval Status"}, nil
	case FormatDetailed:
		return []string{"ID", "URL", "Child Network", "Approval Status", "Active"}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownFormat, format)
	}
}

// MapRow maps one site into a display row for the given output format.
func MapRow(site admanager.Site, format OutputFormat) ([]string, error) {
	switch format {
	case FormatSummary:
		return []string{site.URL, site.ApprovalStatus}, nil
	case FormatDetailed:
		return []string{
			strconv.FormatInt(site.ID, 10),
			site.URL,
			site.ChildNetworkCode,
			site.ApprovalStatus,
			strconv.FormatBool(site.Active),
		}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownFormat, format)
	}
}

// MapRows maps a page of sites into display rows, one row per record.
func MapRows(sites []admanager.Site, format OutputFormat) ([][]string, error) {
	rows := make([][]string, 0, len(sites))
	for _, site := range sites {
		row, err := MapRow(site, format)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}
