package bigquery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/zerohunger/zerohunger-backend/pkg/config"
	"github.com/zerohunger/zerohunger-backend/pkg/gcp"
	"github.com/zerohunger/zerohunger-backend/pkg/logger"
)

const metadataTimeout = 10 * time.Second

var errNotInitialized = errors.New("bigquery client not initialized")

// Client streams rows into one dataset.
type Client struct {
	client  *bigquery.Client
	dataset *bigquery.Dataset
	tables  []string
}

// NewClient connects to BigQuery and checks that the dataset is reachable.
// Tables are verified by Ping once EnsureTable has registered them.
func NewClient(ctx context.Context, gcpCfg config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcpCfg.ProjectID)
	if project == "" {
		return nil, errors.New("gcp project id is required")
	}
	datasetID := strings.TrimSpace(cfg.Dataset)
	if datasetID == "" {
		return nil, errors.New("bigquery dataset is required")
	}

	conn, err := bigquery.NewClient(ctx, project, gcp.ClientOptions(gcpCfg)...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}
	c := &Client{client: conn, dataset: conn.Dataset(datasetID)}
	if err := c.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"project": project, "dataset": datasetID}), "bigquery client ready")
	}
	return c, nil
}

// EnsureTable creates table with schema when it is missing, partitioned by
// day on partitionField when that is set. Existing tables are left as they
// are. Either way the table joins the set Ping checks.
func (c *Client) EnsureTable(ctx context.Context, table string, schema bigquery.Schema, partitionField string) error {
	if c == nil || c.dataset == nil {
		return errNotInitialized
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return errors.New("bigquery table name is required")
	}
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	ref := c.dataset.Table(table)
	_, err := ref.Metadata(ctx)
	switch {
	case err == nil:
	case gcp.IsNotFound(err):
		meta := &bigquery.TableMetadata{Schema: schema}
		if partitionField != "" {
			meta.TimePartitioning = &bigquery.TimePartitioning{Type: bigquery.DayPartitioningType, Field: partitionField}
		}
		if err := ref.Create(ctx, meta); err != nil {
			return fmt.Errorf("create table %s: %w", table, err)
		}
	default:
		return fmt.Errorf("checking table %s: %w", table, err)
	}
	c.tables = append(c.tables, table)
	return nil
}

// Ping checks the dataset and every ensured table.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return errNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	if _, err := c.dataset.Metadata(ctx); err != nil {
		return describe("dataset "+c.dataset.DatasetID, err)
	}
	for _, table := range c.tables {
		if _, err := c.dataset.Table(table).Metadata(ctx); err != nil {
			return describe("table "+table, err)
		}
	}
	return nil
}

func describe(what string, err error) error {
	if gcp.IsNotFound(err) {
		return fmt.Errorf("%s does not exist", what)
	}
	return fmt.Errorf("checking %s: %w", what, err)
}

// InsertRows streams rows into table. Values may be ValueSavers or structs
// with bigquery tags.
func (c *Client) InsertRows(ctx context.Context, table string, rows []any) error {
	if c == nil || c.dataset == nil {
		return errNotInitialized
	}
	if len(rows) == 0 {
		return nil
	}
	return c.dataset.Table(strings.TrimSpace(table)).Inserter().Put(ctx, rows)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
