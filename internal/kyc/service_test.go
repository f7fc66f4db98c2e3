package kyc_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/neartreasury/kyc-status-server/internal/airtable"
	airtablemocks "github.com/neartreasury/kyc-status-server/internal/airtable/mocks"
	"github.com/neartreasury/kyc-status-server/internal/kyc"
)

func record(fields string) string {
	return fmt.Sprintf(`{"id":"recgyIIfWh3f6MPfo","createdTime":"2025-04-21T01:50:06.000Z","fields":%s}`, fields)
}

func listBody(records ...string) []byte {
	body := `{"records":[`
	for i, r := range records {
		if i > 0 {
			body += ","
		}
		body += r
	}
	return []byte(body + `]}`)
}

func TestResolve_NoRecords(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := airtablemocks.NewMockClient(ctrl)
	mockClient.EXPECT().ListRecords(gomock.Any(), gomock.Any()).Return(listBody(), nil)

	svc, err := kyc.NewService(mockClient)
	require.NoError(t, err)

	res, err := svc.Resolve(context.Background(), "alice.near")
	require.NoError(t, err)
	assert.Equal(t, "alice.near", res.AccountID)
	assert.Equal(t, kyc.StatusNotSubmitted, res.KycStatus)
}

func TestResolve_SingleVerifiedRecord(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := airtablemocks.NewMockClient(ctrl)
	mockClient.EXPECT().ListRecords(gomock.Any(), gomock.Any()).Return(
		listBody(record(`{"Wallet Address":"alice.near","Owner Verification Status":"Verified","KYC Approval Standing (from Contact)":["Approved"]}`)),
		nil,
	)

	svc, err := kyc.NewService(mockClient)
	require.NoError(t, err)

	res, err := svc.Resolve(context.Background(), "alice.near")
	require.NoError(t, err)
	assert.Equal(t, kyc.StatusApproved, res.KycStatus)
}

func TestResolve_VerifiedRecordWinsRegardlessOfPosition(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := airtablemocks.NewMockClient(ctrl)
	mockClient.EXPECT().ListRecords(gomock.Any(), gomock.Any()).Return(
		listBody(
			record(`{"Owner Verification Status":"Pending"}`),
			record(`{"Owner Verification Status":"Verified"}`),
		),
		nil,
	)

	svc, err := kyc.NewService(mockClient)
	require.NoError(t, err)

	res, err := svc.Resolve(context.Background(), "alice.near")
	require.NoError(t, err)
	assert.Equal(t, kyc.StatusApproved, res.KycStatus)
}

func TestResolve_FirstRecordWinsWithoutVerified(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		first  string
		second string
		want   kyc.Status
	}{
		{
			name:   "first pending",
			first:  `{"Owner Verification Status":"Pending"}`,
			second: `{"Owner Verification Status":"Rejected"}`,
			want:   kyc.StatusPending,
		},
		{
			name:   "first rejected",
			first:  `{"Owner Verification Status":"Rejected"}`,
			second: `{"Owner Verification Status":"Pending"}`,
			want:   kyc.StatusRejected,
		},
		{
			name:   "first expired",
			first:  `{"Owner Verification Status":"Expired"}`,
			second: `{"Owner Verification Status":"Pending"}`,
			want:   kyc.StatusExpired,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockClient := airtablemocks.NewMockClient(ctrl)
			mockClient.EXPECT().ListRecords(gomock.Any(), gomock.Any()).Return(
				listBody(record(tt.first), record(tt.second)), nil,
			)

			svc, err := kyc.NewService(mockClient)
			require.NoError(t, err)

			res, err := svc.Resolve(context.Background(), "alice.near")
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.KycStatus)
		})
	}
}

func TestResolve_ExpiredStandingOverridesPositiveStatus(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// The only record says Verified, but the standing rollup marks it expired.
	mockClient := airtablemocks.NewMockClient(ctrl)
	mockClient.EXPECT().ListRecords(gomock.Any(), gomock.Any()).Return(
		listBody(record(`{"Owner Verification Status":"Verified","KYC Approval Standing (from Contact)":["Expired"]}`)),
		nil,
	)

	svc, err := kyc.NewService(mockClient)
	require.NoError(t, err)

	res, err := svc.Resolve(context.Background(), "alice.near")
	require.NoError(t, err)
	assert.Equal(t, kyc.StatusExpired, res.KycStatus)
}

func TestResolve_ActiveVerifiedBeatsExpiredVerified(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := airtablemocks.NewMockClient(ctrl)
	mockClient.EXPECT().ListRecords(gomock.Any(), gomock.Any()).Return(
		listBody(
			record(`{"Owner Verification Status":"Verified","KYC Approval Standing (from Contact)":["Expired"]}`),
			record(`{"Owner Verification Status":"Verified","KYC Approval Standing (from Contact)":["Approved"]}`),
		),
		nil,
	)

	svc, err := kyc.NewService(mockClient)
	require.NoError(t, err)

	res, err := svc.Resolve(context.Background(), "alice.near")
	require.NoError(t, err)
	assert.Equal(t, kyc.StatusApproved, res.KycStatus)
}

func TestResolve_ExpiredStandingDoesNotOverrideRejected(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := airtablemocks.NewMockClient(ctrl)
	mockClient.EXPECT().ListRecords(gomock.Any(), gomock.Any()).Return(
		listBody(record(`{"Owner Verification Status":"Rejected","KYC Approval Standing (from Contact)":["Expired"]}`)),
		nil,
	)

	svc, err := kyc.NewService(mockClient)
	require.NoError(t, err)

	res, err := svc.Resolve(context.Background(), "alice.near")
	require.NoError(t, err)
	assert.Equal(t, kyc.StatusRejected, res.KycStatus)
}

func TestResolve_FilterFormulaEscapesAccountID(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var captured airtable.ListOptions
	mockClient := airtablemocks.NewMockClient(ctrl)
	mockClient.EXPECT().ListRecords(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, opts airtable.ListOptions) ([]byte, error) {
			captured = opts
			return listBody(), nil
		},
	)

	svc, err := kyc.NewService(mockClient)
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), "alice.near")
	require.NoError(t, err)

	assert.Equal(t, 5, captured.MaxRecords)
	assert.Equal(t, "Grid view", captured.View)
	assert.Equal(t, `REGEX_MATCH({Wallet Address}, '(^|,)alice\.near(,|$)')`, captured.FilterByFormula)
}

func TestResolve_InvalidAccountID(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// No upstream call may happen for invalid input.
	mockClient := airtablemocks.NewMockClient(ctrl)

	svc, err := kyc.NewService(mockClient)
	require.NoError(t, err)

	for _, id := range []string{"", "Alice.near", "alice..near", "x') , ('"} {
		id := id
		_, err := svc.Resolve(context.Background(), id)
		assert.ErrorIs(t, err, kyc.ErrInvalidAccountID, "account id %q", id)
	}
}

func TestResolve_UpstreamUnavailable(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := airtablemocks.NewMockClient(ctrl)
	mockClient.EXPECT().ListRecords(gomock.Any(), gomock.Any()).Return(
		nil, airtable.NewHTTPError(503, "https://api.airtable.com/v0/app/tbl", "503 Service Unavailable"),
	)

	svc, err := kyc.NewService(mockClient)
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), "alice.near")
	assert.ErrorIs(t, err, kyc.ErrUpstreamUnavailable)
}

func TestResolve_SchemaMismatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body []byte
	}{
		{
			name: "not json",
			body: []byte(`<html>rate limited</html>`),
		},
		{
			name: "missing status field",
			body: listBody(record(`{"Wallet Address":"alice.near"}`)),
		},
		{
			name: "unknown vocabulary",
			body: listBody(record(`{"Owner Verification Status":"Maybe"}`)),
		},
		{
			name: "record without fields",
			body: []byte(`{"records":[{"id":"rec123"}]}`),
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockClient := airtablemocks.NewMockClient(ctrl)
			mockClient.EXPECT().ListRecords(gomock.Any(), gomock.Any()).Return(tt.body, nil)

			svc, err := kyc.NewService(mockClient)
			require.NoError(t, err)

			_, err = svc.Resolve(context.Background(), "alice.near")
			assert.ErrorIs(t, err, kyc.ErrUpstreamSchemaMismatch)
		})
	}
}

func TestResolve_Options(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var captured airtable.ListOptions
	mockClient := airtablemocks.NewMockClient(ctrl)
	mockClient.EXPECT().ListRecords(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, opts airtable.ListOptions) ([]byte, error) {
			captured = opts
			return listBody(), nil
		},
	)

	svc, err := kyc.NewService(mockClient,
		kyc.WithMaxRecords(3),
		kyc.WithView("Verification view"),
		kyc.WithWalletField("Wallet Address [Currency]"),
	)
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), "bob.near")
	require.NoError(t, err)

	assert.Equal(t, 3, captured.MaxRecords)
	assert.Equal(t, "Verification view", captured.View)
	assert.Equal(t, `REGEX_MATCH({Wallet Address [Currency]}, '(^|,)bob\.near(,|$)')`, captured.FilterByFormula)
}

func TestNewService_RequiresClient(t *testing.T) {
	t.Parallel()

	_, err := kyc.NewService(nil)
	assert.Error(t, err)
}

func TestCheckReadiness(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, err := kyc.NewService(airtablemocks.NewMockClient(ctrl))
	require.NoError(t, err)

	assert.NoError(t, svc.CheckReadiness(context.Background()))
}
