package reference

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) FetchReference(ctx context.Context, window int) (decimal.Decimal, error) {
	args := m.Called(ctx, window)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "SMA.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileProvider(t *testing.T) {
	path := writeFile(t, "101.5\n100.25\n 99.75 \n")
	p := NewFileProvider(path)

	v, err := p.FetchReference(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "101.5", v.String())

	v, err = p.FetchReference(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "99.75", v.String())
}

func TestFileProviderErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		p := NewFileProvider(filepath.Join(t.TempDir(), "nope.txt"))
		_, err := p.FetchReference(context.Background(), 1)
		assert.Error(t, err)
	})

	t.Run("short file", func(t *testing.T) {
		p := NewFileProvider(writeFile(t, "1\n2"))
		_, err := p.FetchReference(context.Background(), 3)
		assert.ErrorIs(t, err, ErrInsufficientData)
	})

	t.Run("not a number", func(t *testing.T) {
		p := NewFileProvider(writeFile(t, "1\nnan-ish\n3"))
		_, err := p.FetchReference(context.Background(), 2)
		assert.Error(t, err)
	})

	t.Run("bad window", func(t *testing.T) {
		p := NewFileProvider(writeFile(t, "1"))
		_, err := p.FetchReference(context.Background(), 0)
		assert.ErrorIs(t, err, ErrInvalidWindow)
	})
}

func TestWriteSnapshot(t *testing.T) {
	src := &mockFetcher{}
	src.On("FetchReference", mock.Anything, 1).Return(decimal.RequireFromString("10.5"), nil)
	src.On("FetchReference", mock.Anything, 2).Return(decimal.RequireFromString("11"), nil)
	src.On("FetchReference", mock.Anything, 3).Return(decimal.RequireFromString("12.25"), nil)

	var buf bytes.Buffer
	require.NoError(t, WriteSnapshot(context.Background(), &buf, src, 3))
	assert.Equal(t, "10.5\n11\n12.25", buf.String())
}

func TestWriteSnapshotFileRoundTrip(t *testing.T) {
	src := &mockFetcher{}
	src.On("FetchReference", mock.Anything, 1).Return(decimal.RequireFromString("3"), nil)
	src.On("FetchReference", mock.Anything, 2).Return(decimal.RequireFromString("4"), nil)

	path := filepath.Join(t.TempDir(), "SMA.txt")
	require.NoError(t, WriteSnapshotFile(context.Background(), path, src, 2))

	v, err := NewFileProvider(path).FetchReference(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "4", v.String())
}

func TestWriteSnapshotFailure(t *testing.T) {
	src := &mockFetcher{}
	src.On("FetchReference", mock.Anything, 1).Return(decimal.Zero, assert.AnError)

	path := filepath.Join(t.TempDir(), "SMA.txt")
	err := WriteSnapshotFile(context.Background(), path, src, 2)
	require.ErrorIs(t, err, assert.AnError)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}
