package link

import (
	"testing"

	"github.com/anacrolix/torrent/metainfo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMagnetRoundTrip(t *testing.T) {
	hashes := []string{
		"0123456789abcdef0123456789abcdef01234567",
		"ffffffffffffffffffffffffffffffffffffffff",
		"08ada5a7a6183aae1e09d831df6748d566095a10",
	}

	for _, hash := range hashes {
		magnet, err := BuildMagnet(hash, []string{"udp://tracker.example.org:1337/announce"})
		require.NoError(t, err)

		got, err := HashFromMagnet(magnet)
		require.NoError(t, err)
		assert.Equal(t, hash, got)
	}
}

func TestBuildMagnetNormalizesCase(t *testing.T) {
	magnet, err := BuildMagnet("0123456789ABCDEF0123456789ABCDEF01234567", nil)
	require.NoError(t, err)

	got, err := HashFromMagnet(magnet)
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef0123456789abcdef01234567", got)
}

func TestBuildMagnetCarriesTrackers(t *testing.T) {
	trackers := []string{
		"udp://tracker.one.example:80/announce",
		"http://tracker.two.example/announce",
	}
	magnet, err := BuildMagnet("0123456789abcdef0123456789abcdef01234567", trackers)
	require.NoError(t, err)

	parsed, err := metainfo.ParseMagnetUri(magnet)
	require.NoError(t, err)
	assert.ElementsMatch(t, trackers, parsed.Trackers)
}

func TestBuildMagnetRejectsBadHash(t *testing.T) {
	for _, hash := range []string{"", "tooshort", "zzzz456789abcdef0123456789abcdef01234567"} {
		_, err := BuildMagnet(hash, nil)
		assert.Error(t, err, "hash %q", hash)
	}
}

func TestNormalizeHash(t *testing.T) {
	got, err := NormalizeHash("  0123456789ABCDEF0123456789abcdef01234567 ")
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef0123456789abcdef01234567", got)
}
