// Package sheets replicates dataset snapshots to a Google
// Spreadsheet. Each collection lives on its own sheet, one
// JSON-encoded record per row in column A.
package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"tempo/internal/core"
	"tempo/internal/sync"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	prefix        string
}

var _ sync.RemoteStore = (*Client)(nil)

// New builds a Sheets-backed remote. Credentials come from
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// application default credentials, in that order.
func New(ctx context.Context, spreadsheetID, prefix string) (*Client, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	if prefix == "" {
		prefix = "tempo"
	}

	return &Client{svc: svc, spreadsheetID: spreadsheetID, prefix: prefix}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	var opts []goption.ClientOption

	switch {
	case strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")) != "":
		opts = append(opts, goption.WithCredentialsJSON(
			[]byte(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))))
	case strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE")) != "":
		opts = append(opts, goption.WithCredentialsFile(
			strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))))
	}

	opts = append(opts, goption.WithScopes(gsheet.SpreadsheetsScope))

	return gsheet.NewService(ctx, opts...)
}

func (c *Client) sheetRange(collection string) string {
	return fmt.Sprintf("%s_%s!A:A", c.prefix, collection)
}

// Pull fetches the five collection sheets concurrently and assembles
// them into one snapshot.
func (c *Client) Pull(ctx context.Context) (*core.Dataset, error) {
	ds := core.NewDataset()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return pullCollection(ctx, c, "users", &ds.Users)
	})
	g.Go(func() error {
		return pullCollection(ctx, c, "categories", &ds.Categories)
	})
	g.Go(func() error {
		return pullCollection(ctx, c, "accounts", &ds.Accounts)
	})
	g.Go(func() error {
		return pullCollection(ctx, c, "sessions", &ds.Sessions)
	})
	g.Go(func() error {
		return pullCollection(ctx, c, "user_ops", &ds.Ops)
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	ds.Normalize()

	return ds, nil
}

func pullCollection[T any](ctx context.Context, c *Client, name string, out *[]T) error {
	resp, err := c.svc.Spreadsheets.Values.
		Get(c.spreadsheetID, c.sheetRange(name)).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("pull %s: %w", name, err)
	}

	records := make([]T, 0, len(resp.Values))

	for _, row := range resp.Values {
		if len(row) == 0 {
			continue
		}

		doc, ok := row[0].(string)
		if !ok || strings.TrimSpace(doc) == "" {
			continue
		}

		var rec T
		if err := json.Unmarshal([]byte(doc), &rec); err != nil {
			return fmt.Errorf("decode %s row: %w", name, err)
		}

		records = append(records, rec)
	}

	*out = records

	return nil
}

// Push replaces every collection sheet with the snapshot's records.
func (c *Client) Push(ctx context.Context, ds *core.Dataset) error {
	if err := pushCollection(ctx, c, "users", ds.Users); err != nil {
		return err
	}

	if err := pushCollection(ctx, c, "categories", ds.Categories); err != nil {
		return err
	}

	if err := pushCollection(ctx, c, "accounts", ds.Accounts); err != nil {
		return err
	}

	if err := pushCollection(ctx, c, "sessions", ds.Sessions); err != nil {
		return err
	}

	return pushCollection(ctx, c, "user_ops", ds.Ops)
}

func pushCollection[T any](ctx context.Context, c *Client, name string, records []T) error {
	rng := c.sheetRange(name)

	_, err := c.svc.Spreadsheets.Values.
		Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("clear %s: %w", name, err)
	}

	if len(records) == 0 {
		return nil
	}

	values := make([][]interface{}, 0, len(records))

	for _, rec := range records {
		doc, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode %s row: %w", name, err)
		}

		values = append(values, []interface{}{string(doc)})
	}

	_, err = c.svc.Spreadsheets.Values.
		Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("push %s: %w", name, err)
	}

	return nil
}
