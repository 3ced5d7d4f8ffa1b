// Package statements imports bank statement CSV files from S3-compatible
// object storage into bank_transactions rows. Lines are keyed by a content
// hash, so importing the same file twice does not duplicate anything.
package statements

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ledgerlink/ledgerlink/app/models"
	"github.com/ledgerlink/ledgerlink/app/repository"
	"github.com/ledgerlink/ledgerlink/internal/pkg/metrics"
)

// Expected CSV columns: booked_at (yyyy-mm-dd), amount (decimal, signed),
// currency, description.
const expectedColumns = 4

// ObjectStore is the subset of the S3 API the importer uses.
type ObjectStore interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Summary reports what one import run did.
type Summary struct {
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
	Invalid    int `json:"invalid"`
}

// Importer downloads statement files and loads their lines.
type Importer struct {
	store ObjectStore
	recon repository.ReconRepository
}

// New creates an importer with an explicit object store, used by tests.
func New(store ObjectStore, recon repository.ReconRepository) *Importer {
	return &Importer{store: store, recon: recon}
}

// NewFromEnv builds an importer with an S3 client configured from the
// environment. S3_ENDPOINT supports MinIO and other S3-compatible stores.
func NewFromEnv(ctx context.Context, recon repository.ReconRepository) (*Importer, error) {
	region := os.Getenv("S3_REGION")
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if key := os.Getenv("S3_ACCESS_KEY"); key != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(key, os.Getenv("S3_SECRET_KEY"), ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint := os.Getenv("S3_ENDPOINT"); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &Importer{store: client, recon: recon}, nil
}

// ImportObject downloads one statement file and inserts its lines.
func (i *Importer) ImportObject(ctx context.Context, orgID uint, bucket, key, account string) (*Summary, error) {
	out, err := i.store.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch statement %s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	return i.ImportReader(ctx, orgID, account, out.Body)
}

// ImportReader parses CSV statement lines from r and inserts the new ones.
// Malformed lines are counted and skipped rather than aborting the file.
func (i *Importer) ImportReader(ctx context.Context, orgID uint, account string, r io.Reader) (*Summary, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	summary := &Summary{}
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return summary, fmt.Errorf("failed to read statement line %d: %w", line+1, err)
		}
		line++

		if line == 1 && isHeaderRow(record) {
			continue
		}

		tx, err := parseLine(orgID, account, record)
		if err != nil {
			log.Warnf("[Statements] Skipping line %d for account %s: %v", line, account, err)
			summary.Invalid++
			metrics.StatementLinesImported.WithLabelValues(account, "invalid").Inc()
			continue
		}

		created, err := i.recon.InsertBankTransactionIfNew(tx)
		if err != nil {
			return summary, fmt.Errorf("failed to insert statement line %d: %w", line, err)
		}
		if created {
			summary.Inserted++
			metrics.StatementLinesImported.WithLabelValues(account, "inserted").Inc()
		} else {
			summary.Duplicates++
			metrics.StatementLinesImported.WithLabelValues(account, "duplicate").Inc()
		}
	}

	return summary, nil
}

func isHeaderRow(record []string) bool {
	if len(record) == 0 {
		return false
	}
	first := strings.ToLower(strings.TrimSpace(record[0]))
	return first == "booked_at" || first == "date"
}

func parseLine(orgID uint, account string, record []string) (*models.BankTransaction, error) {
	if len(record) < expectedColumns {
		return nil, fmt.Errorf("expected %d columns, got %d", expectedColumns, len(record))
	}

	bookedAt, err := time.Parse("2006-01-02", strings.TrimSpace(record[0]))
	if err != nil {
		return nil, fmt.Errorf("invalid booked_at %q", record[0])
	}

	amountCents, err := parseAmountCents(strings.TrimSpace(record[1]))
	if err != nil {
		return nil, err
	}

	currency := strings.ToUpper(strings.TrimSpace(record[2]))
	if len(currency) != 3 {
		return nil, fmt.Errorf("invalid currency %q", record[2])
	}

	description := strings.TrimSpace(record[3])

	return &models.BankTransaction{
		OrgID:       orgID,
		Account:     account,
		LineHash:    models.ComputeStatementLineHash(account, bookedAt, amountCents, description),
		AmountCents: amountCents,
		Currency:    currency,
		BookedAt:    bookedAt,
		Description: description,
	}, nil
}

// parseAmountCents converts a decimal string like "-1234.56" to cents without
// going through float64.
func parseAmountCents(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}

	negative := false
	switch s[0] {
	case '-':
		negative = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	whole := s
	frac := "00"
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		whole = s[:idx]
		frac = s[idx+1:]
		switch len(frac) {
		case 0:
			frac = "00"
		case 1:
			frac += "0"
		case 2:
		default:
			return 0, fmt.Errorf("invalid amount %q: more than two decimal places", s)
		}
	}
	if whole == "" {
		whole = "0"
	}

	wholeVal, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	fracVal, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}

	cents := wholeVal*100 + fracVal
	if negative {
		cents = -cents
	}
	return cents, nil
}
