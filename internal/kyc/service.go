package kyc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/neartreasury/kyc-status-server/internal/airtable"
	"github.com/neartreasury/kyc-status-server/internal/telemetry"
	"github.com/neartreasury/kyc-status-server/internal/validators"
)

var (
	// ErrInvalidAccountID is returned when the account identifier fails
	// validation; no upstream call is made in that case
	ErrInvalidAccountID = errors.New("invalid account id")
	// ErrUpstreamUnavailable is returned when the verification database
	// cannot be reached or answers with an error status
	ErrUpstreamUnavailable = errors.New("verification database unavailable")
	// ErrUpstreamSchemaMismatch is returned when the upstream response body
	// does not match the expected record schema
	ErrUpstreamSchemaMismatch = errors.New("unexpected verification record schema")
)

//go:generate mockgen -destination=mocks/mock_service.go -package=mocks -source=service.go StatusService

// StatusService defines the interface for KYC status resolution
type StatusService interface {
	// Resolve looks up the verification status for an account
	Resolve(ctx context.Context, accountID string) (*Resolution, error)

	// CheckReadiness checks if the service is ready to serve requests
	CheckReadiness(ctx context.Context) error
}

// Resolution pairs the account identifier with its resolved status
type Resolution struct {
	AccountID string `json:"account_id"`
	KycStatus Status `json:"kyc_status"`
}

// verificationFields is the Airtable field schema this service reads. The
// primary status field carries the decision; the standing rollup from the
// linked contact may mark it expired.
type verificationFields struct {
	VerificationStatus string   `json:"Owner Verification Status"`
	ApprovalStanding   []string `json:"KYC Approval Standing (from Contact)"`
}

const (
	defaultWalletField = "Wallet Address"
	defaultView        = "Grid view"
	defaultMaxRecords  = 5
)

// statusSvc implements the StatusService interface
type statusSvc struct {
	client      airtable.Client
	walletField string
	view        string
	maxRecords  int
	metrics     *telemetry.ResolverMetrics
}

var _ StatusService = (*statusSvc)(nil)

// Option is a functional option for configuring the statusSvc
type Option func(*statusSvc)

// WithView overrides the Airtable view queried for verification records
func WithView(view string) Option {
	return func(s *statusSvc) {
		s.view = view
	}
}

// WithMaxRecords overrides how many matching rows are requested upstream
func WithMaxRecords(n int) Option {
	return func(s *statusSvc) {
		if n > 0 {
			s.maxRecords = n
		}
	}
}

// WithWalletField overrides the field the account identifier is matched against
func WithWalletField(field string) Option {
	return func(s *statusSvc) {
		s.walletField = field
	}
}

// WithMetrics attaches resolver metrics. A nil value disables recording.
func WithMetrics(m *telemetry.ResolverMetrics) Option {
	return func(s *statusSvc) {
		s.metrics = m
	}
}

// NewService creates a new status service backed by the given Airtable client.
func NewService(client airtable.Client, opts ...Option) (StatusService, error) {
	if client == nil {
		return nil, fmt.Errorf("airtable client is required")
	}

	s := &statusSvc{
		client:      client,
		walletField: defaultWalletField,
		view:        defaultView,
		maxRecords:  defaultMaxRecords,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Resolve validates the account identifier, fetches matching verification
// records and reduces them to a single status. Exactly one upstream call is
// made per invocation; zero matching records resolve to NOT_SUBMITTED.
func (s *statusSvc) Resolve(ctx context.Context, accountID string) (*Resolution, error) {
	start := time.Now()

	id, err := validators.ValidateAccountID(accountID)
	if err != nil {
		s.metrics.RecordLookup(ctx, "", "invalid_account", time.Since(start))
		return nil, fmt.Errorf("%w: %s", ErrInvalidAccountID, err)
	}

	data, err := s.client.ListRecords(ctx, airtable.ListOptions{
		MaxRecords:      s.maxRecords,
		View:            s.view,
		FilterByFormula: airtable.CommaListMatch(s.walletField, id),
	})
	if err != nil {
		slog.ErrorContext(ctx, "Verification record fetch failed", "account_id", id, "error", err)
		s.metrics.RecordLookup(ctx, "", "upstream_error", time.Since(start))
		return nil, fmt.Errorf("%w: %s", ErrUpstreamUnavailable, err)
	}

	var listResponse airtable.ListRecordsResponse
	if err := json.Unmarshal(data, &listResponse); err != nil {
		slog.ErrorContext(ctx, "Failed to parse verification records", "account_id", id, "error", err)
		s.metrics.RecordLookup(ctx, "", "schema_error", time.Since(start))
		return nil, fmt.Errorf("%w: %s", ErrUpstreamSchemaMismatch, err)
	}

	status, err := selectStatus(listResponse.Records)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to normalize verification records", "account_id", id, "error", err)
		s.metrics.RecordLookup(ctx, "", "schema_error", time.Since(start))
		return nil, err
	}

	slog.DebugContext(ctx, "Resolved KYC status",
		"account_id", id,
		"status", string(status),
		"records", len(listResponse.Records),
		"duration", time.Since(start).String(),
	)
	s.metrics.RecordLookup(ctx, string(status), "resolved", time.Since(start))

	return &Resolution{
		AccountID: id,
		KycStatus: status,
	}, nil
}

// CheckReadiness checks if the service is ready to serve requests
func (s *statusSvc) CheckReadiness(_ context.Context) error {
	if s.client == nil {
		return fmt.Errorf("airtable client not initialized")
	}
	return nil
}

// recordStatus is one record's fields after normalization
type recordStatus struct {
	status          Status
	standingExpired bool
}

// selectStatus reduces the returned records to a single status:
//
//  1. The first record whose status is Verified and whose standing is not
//     expired wins.
//  2. Otherwise the first record (store order) determines the status, with
//     an expired standing overriding a positive status on that record.
//  3. Zero records resolve to NOT_SUBMITTED.
//
// Normalization is strict: any record carrying vocabulary outside the known
// set fails the whole lookup rather than being skipped.
func selectStatus(records []airtable.Record) (Status, error) {
	if len(records) == 0 {
		return StatusNotSubmitted, nil
	}

	normalized := make([]recordStatus, 0, len(records))
	for _, record := range records {
		var fields verificationFields
		if err := json.Unmarshal(record.Fields, &fields); err != nil {
			return "", fmt.Errorf("%w: record %s: %s", ErrUpstreamSchemaMismatch, record.ID, err)
		}

		status, err := normalizeStatus(fields.VerificationStatus)
		if err != nil {
			return "", fmt.Errorf("record %s: %w", record.ID, err)
		}

		normalized = append(normalized, recordStatus{
			status:          status,
			standingExpired: slices.Contains(fields.ApprovalStanding, fieldValueExpired),
		})
	}

	for _, rs := range normalized {
		if rs.status == StatusApproved && !rs.standingExpired {
			return StatusApproved, nil
		}
	}

	first := normalized[0]
	if first.standingExpired && isPositive(first.status) {
		return StatusExpired, nil
	}
	return first.status, nil
}
