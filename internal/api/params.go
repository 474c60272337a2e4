package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/opensource-finance/finsight/internal/domain"
)

func requiredParam(q url.Values, name string) (string, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return "", fmt.Errorf("%w: %s is required", domain.ErrInvalidInput, name)
	}
	return v, nil
}

func boolParam(q url.Values, name string) (*bool, error) {
	raw := q.Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be true or false", domain.ErrInvalidInput, name)
	}
	return &v, nil
}

func intParam(q url.Values, name string, def int) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", domain.ErrInvalidInput, name)
	}
	return v, nil
}

func invalidDateParam(name string) error {
	return fmt.Errorf("%w: %s must be YYYY-MM-DD, YYYY-MM-DDTHH:MM:SS or RFC 3339", domain.ErrInvalidInput, name)
}

// dateParam reads a calendar date. A date-time is reduced to its date in
// the handler's zone.
func (h *Handler) dateParam(q url.Values, name string) (*domain.Date, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil, nil
	}
	if i, err := domain.ParseInstant(raw); err == nil {
		d := domain.DateOf(i.In(h.loc), h.loc)
		return &d, nil
	}
	d, err := domain.ParseDate(raw)
	if err != nil {
		return nil, invalidDateParam(name)
	}
	return &d, nil
}

// instantParam reads a window bound. RFC 3339 values are used as given and
// offset-less date-times are read in the handler's zone. A bare date covers
// the whole day, so endOfDay picks its last second.
func (h *Handler) instantParam(q url.Values, name string, endOfDay bool) (*time.Time, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil, nil
	}
	if i, err := domain.ParseInstant(raw); err == nil {
		t := i.In(h.loc)
		return &t, nil
	}
	d, err := domain.ParseDate(raw)
	if err != nil {
		return nil, invalidDateParam(name)
	}
	t := d.StartOf(h.loc)
	if endOfDay {
		t = d.EndOf(h.loc)
	}
	return &t, nil
}

func (h *Handler) parseSearch(r *http.Request) (domain.TransactionFilter, domain.PageRequest, error) {
	q := r.URL.Query()
	var (
		filter domain.TransactionFilter
		page   domain.PageRequest
		err    error
	)

	if filter.UserID, err = requiredParam(q, "userId"); err != nil {
		return filter, page, err
	}
	filter.Type = domain.TransactionType(strings.ToUpper(strings.TrimSpace(q.Get("type"))))
	filter.Category = strings.TrimSpace(q.Get("category"))
	if filter.Start, err = h.instantParam(q, "startDate", false); err != nil {
		return filter, page, err
	}
	if filter.End, err = h.instantParam(q, "endDate", true); err != nil {
		return filter, page, err
	}
	if filter.Fraudulent, err = boolParam(q, "fraudulent"); err != nil {
		return filter, page, err
	}

	if page.Page, err = intParam(q, "page", 0); err != nil {
		return filter, page, err
	}
	if page.Size, err = intParam(q, "size", 0); err != nil {
		return filter, page, err
	}
	page.SortBy = q.Get("sortBy")
	page.SortDir = strings.ToLower(q.Get("sortDir"))
	return filter, page, nil
}
