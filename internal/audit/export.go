package audit

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"time"
)

var csvHeader = []string{"id", "occurred_at", "actor_user_id", "actor_role", "action", "target_entity", "target_id", "role_id", "page_id", "summary", "before", "after", "remote_addr"}

// WriteCSV renders entries as CSV with a header row.
func WriteCSV(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, e := range entries {
		record := []string{
			strconv.FormatInt(e.ID, 10),
			e.OccurredAt.UTC().Format(time.RFC3339),
			strconv.FormatInt(e.ActorUserID, 10),
			e.ActorRole,
			string(e.Action),
			e.TargetEntity,
			e.TargetID,
			optionalID(e.RoleID),
			optionalID(e.PageID),
			e.Summary,
			string(e.Before),
			string(e.After),
			e.RemoteAddr,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func optionalID(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}
