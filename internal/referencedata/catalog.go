// Package referencedata provides course catalog lookups used to enrich
// credential claims. The catalog is advisory: issuance never blocks on it.
package referencedata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	id "accredo/pkg/domain"
	dErrors "accredo/pkg/domain-errors"
	"accredo/pkg/platform/circuit"
)

// Course is the reference record for a catalog course.
type Course struct {
	ID      id.CourseID `json:"id"`
	Name    string      `json:"name"`
	Credits int         `json:"credits"`
	Active  bool        `json:"active"`
}

// Catalog is the reference-data collaborator contract.
// Error Contract: not_found for unknown ids, validation_failed for inactive
// courses, unavailable for transport failures. Callers treat all three as
// non-fatal and fall back to defaults.
type Catalog interface {
	GetCourse(ctx context.Context, courseID id.CourseID) (Course, error)
}

// MemoryCatalog serves courses from a fixed table. Used for local deployments
// and tests.
type MemoryCatalog struct {
	mu      sync.RWMutex
	courses map[id.CourseID]Course
}

// NewMemoryCatalog constructs an empty in-memory catalog.
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{courses: make(map[id.CourseID]Course)}
}

// Put registers or replaces a course.
func (c *MemoryCatalog) Put(course Course) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.courses[course.ID] = course
}

// GetCourse returns the course or not_found / validation_failed.
func (c *MemoryCatalog) GetCourse(_ context.Context, courseID id.CourseID) (Course, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	course, ok := c.courses[courseID]
	if !ok {
		return Course{}, dErrors.New(dErrors.CodeNotFound,
			fmt.Sprintf("course %s not in catalog", courseID))
	}
	if !course.Active {
		return Course{}, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("course %s is inactive", courseID))
	}
	return course, nil
}

// HTTPCatalog fetches course records from the institution's catalog service.
// Concurrent lookups for the same course are collapsed into one request, and a
// circuit breaker shortens probe timeouts while the catalog is failing.
type HTTPCatalog struct {
	baseURL string
	client  *http.Client
	group   singleflight.Group
	breaker *circuit.Breaker
	logger  *slog.Logger
}

// NewHTTPCatalog constructs a catalog client for the given base URL.
func NewHTTPCatalog(baseURL string, client *http.Client) *HTTPCatalog {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &HTTPCatalog{
		baseURL: baseURL,
		client:  client,
		breaker: circuit.New("course-catalog"),
		logger:  slog.Default(),
	}
}

// GetCourse fetches a course record, collapsing concurrent identical lookups.
// While the circuit is open, probes run under a one-second deadline so issuance
// latency stays bounded during a catalog outage.
func (c *HTTPCatalog) GetCourse(ctx context.Context, courseID id.CourseID) (Course, error) {
	v, err, _ := c.group.Do(courseID.String(), func() (any, error) {
		fetchCtx := ctx
		if c.breaker.IsOpen() {
			var cancel context.CancelFunc
			fetchCtx, cancel = context.WithTimeout(ctx, time.Second)
			defer cancel()
		}

		course, err := c.fetch(fetchCtx, courseID)
		if err != nil && dErrors.HasCode(err, dErrors.CodeUnavailable) {
			if _, change := c.breaker.RecordFailure(); change.Opened {
				c.logger.Warn("course catalog circuit opened", "base_url", c.baseURL)
			}
		} else {
			if _, change := c.breaker.RecordSuccess(); change.Closed {
				c.logger.Info("course catalog circuit closed", "base_url", c.baseURL)
			}
		}
		return course, err
	})
	if err != nil {
		return Course{}, err
	}
	return v.(Course), nil
}

func (c *HTTPCatalog) fetch(ctx context.Context, courseID id.CourseID) (Course, error) {
	url := fmt.Sprintf("%s/courses/%s", c.baseURL, courseID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Course{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "build catalog request")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Course{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "course catalog unreachable")
	}
	defer resp.Body.Close() //nolint:errcheck

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return Course{}, dErrors.New(dErrors.CodeNotFound,
			fmt.Sprintf("course %s not in catalog", courseID))
	default:
		return Course{}, dErrors.New(dErrors.CodeUnavailable,
			fmt.Sprintf("course catalog returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Course{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "read catalog response")
	}

	var course Course
	if err := json.Unmarshal(body, &course); err != nil {
		return Course{}, dErrors.Wrap(err, dErrors.CodeValidation, "malformed catalog record")
	}
	if !course.Active {
		return Course{}, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("course %s is inactive", courseID))
	}
	return course, nil
}
