package deploy

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/logging"
	"cloud.google.com/go/logging/logadmin"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/structpb"
)

type LogQuery struct {
	Service string
	Region  string
	// Since limits entries to those newer than now minus Since.
	Since       time.Duration
	MinSeverity string
	Limit       int
}

type LogLine struct {
	Timestamp time.Time
	Severity  string
	Revision  string
	Message   string
}

func (l LogLine) String() string {
	return fmt.Sprintf("%s %-8s %s", l.Timestamp.UTC().Format(time.RFC3339), strings.ToUpper(l.Severity), l.Message)
}

// LogFilter builds the Cloud Logging filter for query relative to now.
func LogFilter(query LogQuery, now time.Time) (string, error) {
	parts := []string{
		`resource.type="cloud_run_revision"`,
		fmt.Sprintf(`resource.labels.service_name="%s"`, query.Service),
	}
	if query.Region != "" {
		parts = append(parts, fmt.Sprintf(`resource.labels.location="%s"`, query.Region))
	}
	if query.Since > 0 {
		parts = append(parts, fmt.Sprintf(`timestamp>="%s"`, now.Add(-query.Since).UTC().Format(time.RFC3339)))
	}
	if query.MinSeverity != "" {
		severity := logging.ParseSeverity(query.MinSeverity)
		if severity == logging.Default && !strings.EqualFold(query.MinSeverity, "default") {
			return "", fmt.Errorf("unknown log severity '%v'", query.MinSeverity)
		}
		parts = append(parts, fmt.Sprintf("severity>=%s", strings.ToUpper(severity.String())))
	}
	return strings.Join(parts, " AND "), nil
}

// entryMessage extracts the text of an entry. Structured entries written by
// the service carry the text under "message".
func entryMessage(payload interface{}) string {
	switch p := payload.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimRight(p, "\n")
	case *structpb.Struct:
		fields := p.AsMap()
		msg, _ := fields["message"].(string)
		delete(fields, "message")
		if len(fields) == 0 {
			return msg
		}
		attrs, err := json.Marshal(fields)
		if err != nil {
			return msg
		}
		if msg == "" {
			return string(attrs)
		}
		return msg + " " + string(attrs)
	default:
		return fmt.Sprintf("%v", p)
	}
}

type LogReader struct {
	admin *logadmin.Client
}

func NewLogReader(ctx context.Context, project string, opts ...option.ClientOption) (*LogReader, error) {
	client, err := logadmin.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, fmt.Errorf("error creating logadmin client: %w", err)
	}
	return &LogReader{admin: client}, nil
}

func (r *LogReader) Close() error {
	return r.admin.Close()
}

// Read returns the newest matching entries, newest first.
func (r *LogReader) Read(ctx context.Context, query LogQuery) ([]LogLine, error) {
	filter, err := LogFilter(query, time.Now())
	if err != nil {
		return nil, err
	}

	limit := query.Limit
	if limit <= 0 {
		limit = 100
	}

	it := r.admin.Entries(ctx, logadmin.Filter(filter), logadmin.NewestFirst())

	lines := make([]LogLine, 0, limit)
	for len(lines) < limit {
		entry, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return lines, fmt.Errorf("error reading log entries: %w", err)
		}

		var revision string
		if entry.Resource != nil {
			revision = entry.Resource.Labels["revision_name"]
		}

		lines = append(lines, LogLine{
			Timestamp: entry.Timestamp,
			Severity:  entry.Severity.String(),
			Revision:  revision,
			Message:   entryMessage(entry.Payload),
		})
	}

	return lines, nil
}
