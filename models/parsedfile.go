package models

// ParsedFile holds the structured attributes TitleParser extracts from a
// filename or release-style string. Array fields are sets: order is never
// significant and callers must not rely on it.
type ParsedFile struct {
	Title          string
	Year           int
	Seasons        []int
	Episodes       []int
	Resolution     string
	Quality        string
	Encode         string
	ReleaseGroup   string
	Edition        string
	Repack         bool
	Remastered     bool
	Uncensored     bool
	Unrated        bool
	Upscaled       bool
	Network        string
	Container      string
	Extension      string
	VisualTags     []string
	AudioTags      []string
	AudioChannels  []string
	Languages      []string
	FolderSeasons  []int
	FolderEpisodes []int
	SeasonPack     bool
}

func unionInts(a, b []int) []int {
	seen := make(map[int]struct{}, len(a)+len(b))
	out := make([]int, 0, len(a)+len(b))
	for _, v := range a {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	for _, v := range b {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, v := range a {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	for _, v := range b {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// MergeFileFolder merges a file-level ParsedFile with its folder-level
// counterpart per spec.md §3: scalar fields prefer file then folder, except
// Title which prefers folder; arrays union-merge; SeasonPack OR-merges.
func MergeFileFolder(file, folder ParsedFile) ParsedFile {
	out := ParsedFile{
		Title:         firstNonEmpty(folder.Title, file.Title),
		Year:          file.Year,
		Resolution:    firstNonEmpty(file.Resolution, folder.Resolution),
		Quality:       firstNonEmpty(file.Quality, folder.Quality),
		Encode:        firstNonEmpty(file.Encode, folder.Encode),
		ReleaseGroup:  firstNonEmpty(file.ReleaseGroup, folder.ReleaseGroup),
		Edition:       firstNonEmpty(file.Edition, folder.Edition),
		Repack:        file.Repack || folder.Repack,
		Remastered:    file.Remastered || folder.Remastered,
		Uncensored:    file.Uncensored || folder.Uncensored,
		Unrated:       file.Unrated || folder.Unrated,
		Upscaled:      file.Upscaled || folder.Upscaled,
		Network:       firstNonEmpty(file.Network, folder.Network),
		Container:     firstNonEmpty(file.Container, folder.Container),
		Extension:     firstNonEmpty(file.Extension, folder.Extension),
		SeasonPack:    file.SeasonPack || folder.SeasonPack,
		Seasons:       unionInts(file.Seasons, folder.Seasons),
		Episodes:      unionInts(file.Episodes, folder.Episodes),
		VisualTags:    unionStrings(file.VisualTags, folder.VisualTags),
		AudioTags:     unionStrings(file.AudioTags, folder.AudioTags),
		AudioChannels: unionStrings(file.AudioChannels, folder.AudioChannels),
		Languages:     unionStrings(file.Languages, folder.Languages),
	}
	if out.Year == 0 {
		out.Year = folder.Year
	}
	out.FolderSeasons = unionInts(file.FolderSeasons, folder.FolderSeasons)
	out.FolderEpisodes = unionInts(file.FolderEpisodes, folder.FolderEpisodes)
	return out
}
