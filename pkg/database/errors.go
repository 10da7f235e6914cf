package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a write would break a uniqueness constraint.
	ErrDuplicate = errors.New("duplicate record")
	// ErrReferenced is returned when a delete is blocked by dependent rows.
	ErrReferenced = errors.New("record is still referenced")
	// ErrSetupRequired is returned when the backing table does not exist yet.
	ErrSetupRequired = errors.New("database setup required")
)

// Postgres SQLSTATE codes we classify.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeUndefinedTable      = "42P01"
	// A malformed uuid literal; no row can match it.
	codeInvalidText = "22P02"
	// PostgREST reports unknown tables with its own code.
	codePostgRESTNoTable = "PGRST205"
)

// postgrestError is the JSON body PostgREST sends with a failed request.
type postgrestError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

// classifyPostgREST turns a failed PostgREST response into a store error.
func classifyPostgREST(status int, body []byte) error {
	var pe postgrestError
	_ = json.Unmarshal(body, &pe)
	msg := pe.Message
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}

	switch {
	case pe.Code == codeUniqueViolation:
		return fmt.Errorf("%w: %s", ErrDuplicate, msg)
	case pe.Code == codeForeignKeyViolation:
		return fmt.Errorf("%w: %s", ErrReferenced, msg)
	case pe.Code == codeUndefinedTable, pe.Code == codePostgRESTNoTable, isMissingRelation(msg):
		return fmt.Errorf("%w: %s", ErrSetupRequired, msg)
	case pe.Code == codeInvalidText:
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	case status == http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrDuplicate, msg)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	}
	return fmt.Errorf("API request failed with status %d: %s", status, msg)
}

// classifyPQ maps lib/pq errors onto store errors; other errors pass through.
func classifyPQ(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case codeUniqueViolation:
			return fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Message)
		case codeForeignKeyViolation:
			return fmt.Errorf("%w: %s", ErrReferenced, pqErr.Message)
		case codeUndefinedTable:
			return fmt.Errorf("%w: %s", ErrSetupRequired, pqErr.Message)
		case codeInvalidText:
			return fmt.Errorf("%w: %s", ErrNotFound, pqErr.Message)
		}
	}
	if isMissingRelation(err.Error()) {
		return fmt.Errorf("%w: %v", ErrSetupRequired, err)
	}
	return err
}

func isMissingRelation(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "relation") && strings.Contains(m, "does not exist")
}

// IsSetupRequired reports whether err means the schema has not been applied.
func IsSetupRequired(err error) bool {
	return errors.Is(err, ErrSetupRequired)
}
