package fileselector

import (
	"github.com/javi11/rarlist"
)

// ExpandRarVolumes turns a multi-part RAR archive's volume listing into the
// media files packed inside it, so Select sees individual video files
// rather than opaque .rNN/.partNN.rar volumes. Grounded on the teacher's
// internal/importer/rar_processor.go use of rarlist.ListFilesFS, which
// already does the cross-volume part aggregation; fs is whatever
// byte-range-capable filesystem the caller's debrid provider exposes over
// the volume set.
func ExpandRarVolumes(fs rarlist.FileSystem, mainVolume string) ([]Candidate, error) {
	aggregated, err := rarlist.ListFilesFS(fs, mainVolume)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(aggregated))
	for i, af := range aggregated {
		candidates = append(candidates, Candidate{
			Index:    i,
			Filename: af.Name,
			Size:     af.TotalPackedSize,
		})
	}
	return candidates, nil
}
