package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveChat(t *testing.T) {
	id, err := ResolveChat(int64(5))
	require.NoError(t, err)
	require.Equal(t, int64(5), id)

	id, err = ResolveChat("-100")
	require.NoError(t, err)
	require.Equal(t, int64(-100), id)

	id, err = ResolveChat(&Message{Chat: Chat{ID: 9}})
	require.NoError(t, err)
	require.Equal(t, int64(9), id)

	_, err = ResolveChat("@channel")
	require.Equal(t, ErrorResolution, CategoryFromError(err))

	_, err = ResolveChat(3.5)
	require.Equal(t, ErrorResolution, CategoryFromError(err))
	require.False(t, IsValidation(err))
}

func TestResolveFileAndMessage(t *testing.T) {
	fileID, err := ResolveFile(&Photo{Best: Image{File: File{ID: "best"}}})
	require.NoError(t, err)
	require.Equal(t, "best", fileID)

	fileID, err = ResolveFile(File{ID: "f"})
	require.NoError(t, err)
	require.Equal(t, "f", fileID)

	_, err = ResolveFile("")
	require.Equal(t, ErrorResolution, CategoryFromError(err))

	msgID, err := ResolveMessage(&Message{ID: 77})
	require.NoError(t, err)
	require.Equal(t, int64(77), msgID)

	_, err = ResolveMessage("77")
	require.Equal(t, ErrorResolution, CategoryFromError(err))
}
