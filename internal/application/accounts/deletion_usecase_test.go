package accounts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/entrenia/entrenia-core/internal/application/dto"
	"github.com/entrenia/entrenia-core/internal/domain"
	"github.com/entrenia/entrenia-core/internal/domain/entity"
)

const (
	testUserID   = "u-1"
	testPassword = "contraseña-segura"
)

var testEpoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func seedUser(t *testing.T, s *fakeAccountStore) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	s.users[testUserID] = &entity.User{
		ID:           testUserID,
		Email:        "laura@example.com",
		PasswordHash: string(hash),
		IsActive:     true,
	}
}

func newDeletionFixture(t *testing.T) (*fakeAccountStore, *DeletionUseCase) {
	t.Helper()
	s := newFakeAccountStore()
	seedUser(t, s)
	uc := NewDeletionUseCase(&fakeUserRepo{s: s}, 30*24*time.Hour, func() time.Time { return testEpoch })
	return s, uc
}

func TestRequestDeletion_AgendaLaPurga(t *testing.T) {
	s, uc := newDeletionFixture(t)

	resp, err := uc.RequestDeletion(context.Background(), testUserID, dto.DeleteAccountRequest{
		Password: testPassword,
		Reason:   "ya no uso la plataforma",
	})
	require.NoError(t, err)

	assert.Equal(t, "pending_deletion", resp.Status)
	expected := testEpoch.Add(30 * 24 * time.Hour)
	assert.Equal(t, expected.Format(time.RFC3339), resp.ScheduledDeletionAt)

	stored := s.users[testUserID]
	assert.False(t, stored.IsActive)
	require.NotNil(t, stored.ScheduledDeletionAt)
	assert.Equal(t, "ya no uso la plataforma", stored.DeletionReason)
}

func TestRequestDeletion_EsIdempotente(t *testing.T) {
	_, uc := newDeletionFixture(t)
	ctx := context.Background()

	first, err := uc.RequestDeletion(ctx, testUserID, dto.DeleteAccountRequest{Password: testPassword})
	require.NoError(t, err)
	second, err := uc.RequestDeletion(ctx, testUserID, dto.DeleteAccountRequest{Password: testPassword})
	require.NoError(t, err)

	// La segunda llamada no mueve la fecha agendada
	assert.Equal(t, first.ScheduledDeletionAt, second.ScheduledDeletionAt)
}

func TestRequestDeletion_PasswordIncorrecta(t *testing.T) {
	s, uc := newDeletionFixture(t)

	_, err := uc.RequestDeletion(context.Background(), testUserID, dto.DeleteAccountRequest{Password: "otra"})
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	assert.True(t, s.users[testUserID].IsActive)
}

func TestRequestDeletion_UsuarioInexistente(t *testing.T) {
	_, uc := newDeletionFixture(t)

	_, err := uc.RequestDeletion(context.Background(), "nadie", dto.DeleteAccountRequest{Password: testPassword})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestCancelDeletion_DentroDeLaVentana(t *testing.T) {
	s, uc := newDeletionFixture(t)
	ctx := context.Background()

	_, err := uc.RequestDeletion(ctx, testUserID, dto.DeleteAccountRequest{Password: testPassword})
	require.NoError(t, err)

	resp, err := uc.CancelDeletion(ctx, testUserID, testPassword)
	require.NoError(t, err)

	assert.Equal(t, "active", resp.Status)
	stored := s.users[testUserID]
	assert.True(t, stored.IsActive)
	assert.Nil(t, stored.ScheduledDeletionAt)
	assert.Empty(t, stored.DeletionReason)
}

func TestCancelDeletion_SinSolicitudPrevia(t *testing.T) {
	_, uc := newDeletionFixture(t)

	_, err := uc.CancelDeletion(context.Background(), testUserID, testPassword)
	assert.ErrorIs(t, err, domain.ErrStateError)
}

func TestCancelDeletion_VentanaVencida(t *testing.T) {
	s := newFakeAccountStore()
	seedUser(t, s)
	expired := testEpoch.Add(-time.Hour)
	s.users[testUserID].IsActive = false
	s.users[testUserID].ScheduledDeletionAt = &expired

	uc := NewDeletionUseCase(&fakeUserRepo{s: s}, 30*24*time.Hour, func() time.Time { return testEpoch })

	_, err := uc.CancelDeletion(context.Background(), testUserID, testPassword)
	assert.ErrorIs(t, err, domain.ErrStateError)
}
