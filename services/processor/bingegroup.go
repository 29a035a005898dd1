package processor

import (
	"fmt"

	"aiostreams/models"
)

// tagBingeGroups implements step (f): derive a bingeGroup per stream from
// stable attributes (addon, service, type, size bucket, resolution) so a
// client's autoplay can match the "next episode" stream against the same
// source. Left unset when autoplay is disabled.
func tagBingeGroups(streams []models.ParsedStream, autoplay bool) {
	if !autoplay {
		return
	}
	for i := range streams {
		streams[i].BingeGroup = bingeGroupOf(streams[i])
	}
}

func bingeGroupOf(s models.ParsedStream) string {
	service := serviceOf(s)
	bucket := sizeBucket(s.Size)
	return fmt.Sprintf("%s|%s|%s|%s|%s", s.Addon.ID, service, s.Type, bucket, s.ParsedFile.Resolution)
}

// sizeBucket groups sizes into coarse bands so near-identical episode
// sizes within a season pack fall into the same bucket.
func sizeBucket(size int64) string {
	const gb = int64(1) << 30
	switch {
	case size <= 0:
		return "unknown"
	case size < 2*gb:
		return "<2GB"
	case size < 5*gb:
		return "2-5GB"
	case size < 10*gb:
		return "5-10GB"
	case size < 20*gb:
		return "10-20GB"
	default:
		return ">=20GB"
	}
}
