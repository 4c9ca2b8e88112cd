package recipe

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/tmdgusya/crawl-selector/internal/css"
)

// ErrInvalidRecipe wraps every validation failure.
var ErrInvalidRecipe = errors.New("invalid recipe")

var fieldNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Validate checks a recipe before it is saved or exported.
func (r *CrawlRecipe) Validate() error {
	var errs []error
	seen := make(map[string]bool, len(r.Fields))

	for i, f := range r.Fields {
		label := fmt.Sprintf("field %d (%s)", i, f.FieldName)

		if !fieldNamePattern.MatchString(f.FieldName) {
			errs = append(errs, fmt.Errorf("%s: field_name must be snake_case", label))
		}
		if seen[f.FieldName] {
			errs = append(errs, fmt.Errorf("%s: duplicate field_name", label))
		}
		seen[f.FieldName] = true

		if f.Selector == "" {
			errs = append(errs, fmt.Errorf("%s: selector is empty", label))
		}
		for _, sel := range f.Selectors() {
			if sel != "" && !css.Valid(sel) {
				errs = append(errs, fmt.Errorf("%s: selector %q does not parse", label, sel))
			}
		}
		if f.ListContainer != "" && !css.Valid(f.ListContainer) {
			errs = append(errs, fmt.Errorf("%s: list_container %q does not parse", label, f.ListContainer))
		}

		switch f.Extract.Type {
		case ExtractText, ExtractHTML:
		case ExtractAttribute:
			if f.Extract.Attribute == "" {
				errs = append(errs, fmt.Errorf("%s: attribute extraction needs an attribute name", label))
			}
		default:
			errs = append(errs, fmt.Errorf("%s: unknown extract type %q", label, f.Extract.Type))
		}

		for _, step := range f.Transforms {
			if !step.Type.Valid() {
				errs = append(errs, fmt.Errorf("%s: unknown transform %q", label, step.Type))
			}
		}
	}

	if r.Pagination != nil {
		switch r.Pagination.Type {
		case PaginationNextButton, PaginationURLPattern, PaginationInfiniteScroll:
		default:
			errs = append(errs, fmt.Errorf("unknown pagination type %q", r.Pagination.Type))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidRecipe, errors.Join(errs...))
}
