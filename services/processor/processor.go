// Package processor implements the Processor (C10): the deterministic
// enrich -> availability-check -> filter -> sort -> dedupe -> binge-group
// pipeline applied to an Aggregator's raw candidate list (spec.md §4.10).
// Every step after (b) is pure: no I/O, so the pipeline is safe to run
// synchronously inline with the request.
package processor

import (
	"context"

	"aiostreams/internal/titleparser"
	"aiostreams/models"
)

var parser = titleparser.New()

// AvailabilityChecker batches a set of hashes for one debrid service and
// reports which are cached, mirroring Provider.CheckMagnets/CheckNzbs
// (spec.md §4.10 step (b)). Implementations are expected to cache and
// batch internally; the Processor calls it once per distinct service.
type AvailabilityChecker func(ctx context.Context, serviceID string, hashes []string) (map[string]bool, error)

// Config bundles every knob the pipeline's steps (c)-(f) consult.
type Config struct {
	Filter  FilterConfig
	Sort    []SortRule
	Dedupe  DedupePolicy
	Autoplay bool
}

// Process runs the full C10 pipeline over candidates and returns the
// final, ordered ParsedStream list. Candidates that fail to parse are
// dropped silently (logged by the caller if desired); candidates that
// don't survive filtering are dropped without error.
func Process(ctx context.Context, candidates []models.UnprocessedResult, cfg Config, check AvailabilityChecker) ([]models.ParsedStream, error) {
	streams := enrich(candidates)

	if err := checkAvailability(ctx, streams, check); err != nil {
		return nil, err
	}

	streams = applyFilter(streams, cfg.Filter)
	streams = sortStreams(streams, cfg.Sort)
	streams = dedupe(streams, cfg.Dedupe)
	tagBingeGroups(streams, cfg.Autoplay)

	return streams, nil
}

// enrich implements step (a): parse title/filename/folderName and merge
// file+folder, per spec.md §3.
func enrich(candidates []models.UnprocessedResult) []models.ParsedStream {
	out := make([]models.ParsedStream, 0, len(candidates))
	for _, c := range candidates {
		if c.Title == "" {
			continue
		}
		fileParsed := parser.Parse(c.Title)
		folderParsed := models.ParsedFile{}
		merged := models.MergeFileFolder(fileParsed, folderParsed)

		var service *models.StreamService
		if c.Kind == models.KindDebrid {
			service = &models.StreamService{ID: c.AddonID, Cached: c.Confirmed}
		}

		out = append(out, models.ParsedStream{
			Addon:      models.StreamAddon{Name: c.AddonName, ID: c.AddonID},
			Type:       c.Kind,
			Service:    service,
			URL:        c.DownloadURL,
			InfoHash:   c.Hash,
			Size:       c.SizeBytes,
			Filename:   c.Title,
			ParsedFile: merged,
			Seeders:    c.Seeders,
			AgeHours:   c.AgeHours,
			Languages:  merged.Languages,
			Library:    c.IsLibrary,
		})
	}
	return out
}

// checkAvailability implements step (b): group unresolved debrid
// candidates by service id, batch-check each group, and stamp the
// result back onto service.cached. The library flag is left as enrich
// set it.
func checkAvailability(ctx context.Context, streams []models.ParsedStream, check AvailabilityChecker) error {
	if check == nil {
		return nil
	}

	byService := make(map[string][]int)
	for i, s := range streams {
		if s.Service == nil || s.Service.Cached || s.InfoHash == "" {
			continue
		}
		byService[s.Service.ID] = append(byService[s.Service.ID], i)
	}

	for serviceID, idxs := range byService {
		hashes := make([]string, len(idxs))
		for j, idx := range idxs {
			hashes[j] = streams[idx].InfoHash
		}
		cached, err := check(ctx, serviceID, hashes)
		if err != nil {
			continue
		}
		for _, idx := range idxs {
			if cached[streams[idx].InfoHash] {
				streams[idx].Service.Cached = true
			}
		}
	}
	return nil
}
