package detect

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/codescope-dev/codescope/pkg/gitlib"
	"github.com/codescope-dev/codescope/pkg/model"
)

const (
	forensicsMaxCommits       = 5000
	forensicsMaxPerBranch     = 100
	forensicsSpamWindowSecs   = 300
	forensicsSuperhumanSecs   = 10
	forensicsTopFileTypes     = 3
	forensicsShortHashLen     = 7
	forensicsMessageSnippetLen = 30
)

type commitRecord struct {
	hash     gitlib.Hash
	author   string
	when     time.Time
	message  string
	added    int
	deleted  int
	fileExts map[string]int
}

// Commits opens the repository at repoPath and reproduces the forensic
// history scan (§4.6): branch-wise author breakdown, period winners at
// day/week/month granularity, suspicious-commit flags, and per-author
// contribution stats across up to 5000 commits reachable from any ref.
func Commits(repoPath string) (model.ForensicsReport, error) {
	repo, err := gitlib.OpenRepository(repoPath)
	if err != nil {
		return model.ForensicsReport{}, err
	}
	defer repo.Free()

	branches, branchErr := repo.Branches()
	if branchErr != nil {
		branches = nil
	}

	branchActivity := collectBranchActivity(repo, branches)

	records, collectErr := collectCommits(repo)
	if collectErr != nil {
		return model.ForensicsReport{}, collectErr
	}

	return buildForensicsReport(branches, branchActivity, records), nil
}

func collectBranchActivity(repo *gitlib.Repository, branches []string) map[string]map[string]int {
	activity := make(map[string]map[string]int)

	for _, name := range branches {
		walk, walkErr := repo.Walk()
		if walkErr != nil {
			continue
		}

		refName := branchRefName(name)
		if pushErr := walk.PushRef(refName); pushErr != nil {
			walk.Free()
			continue
		}

		counts := make(map[string]int)
		seen := 0

		for seen < forensicsMaxPerBranch {
			hash, nextErr := walk.Next()
			if nextErr != nil {
				break
			}

			commit, lookupErr := repo.LookupCommit(hash)
			if lookupErr != nil {
				continue
			}

			counts[commit.Author().Name]++
			commit.Free()
			seen++
		}

		walk.Free()

		if len(counts) > 0 {
			activity[name] = counts
		}
	}

	return activity
}

// branchRefName reconstructs a fully-qualified ref from the short name
// Repository.Branches returns. Remote branches already carry their
// remote prefix (e.g. "origin/main"); local branches don't.
func branchRefName(name string) string {
	if strings.Contains(name, "/") {
		return "refs/remotes/" + name
	}

	return "refs/heads/" + name
}

func collectCommits(repo *gitlib.Repository) ([]commitRecord, error) {
	walk, err := repo.Walk()
	if err != nil {
		return nil, err
	}
	defer walk.Free()

	if globErr := walk.PushGlob("*"); globErr != nil {
		return nil, globErr
	}

	records := make([]commitRecord, 0, forensicsMaxPerBranch)

	for len(records) < forensicsMaxCommits {
		hash, nextErr := walk.Next()
		if nextErr != nil {
			break
		}

		commit, lookupErr := repo.LookupCommit(hash)
		if lookupErr != nil {
			continue
		}

		rec, recErr := buildCommitRecord(repo, commit)

		commit.Free()

		if recErr != nil {
			continue
		}

		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].when.Before(records[j].when)
	})

	return records, nil
}

func buildCommitRecord(repo *gitlib.Repository, commit *gitlib.Commit) (commitRecord, error) {
	rec := commitRecord{
		hash:     commit.Hash(),
		author:   commit.Author().Name,
		when:     commit.Committer().When,
		message:  strings.TrimSpace(commit.Message()),
		fileExts: make(map[string]int),
	}

	newTree, treeErr := commit.Tree()
	if treeErr != nil {
		return rec, treeErr
	}
	defer newTree.Free()

	var oldTree *gitlib.Tree

	if commit.NumParents() > 0 {
		parent, parentErr := commit.Parent(0)
		if parentErr == nil {
			pt, ptErr := parent.Tree()
			if ptErr == nil {
				oldTree = pt
			}

			parent.Free()
		}
	}

	diff, diffErr := repo.DiffTreeToTree(oldTree, newTree)

	if oldTree != nil {
		oldTree.Free()
	}

	if diffErr != nil {
		return rec, nil
	}
	defer diff.Free()

	stats, statsErr := diff.Stats()
	if statsErr == nil {
		rec.added = stats.Insertions()
		rec.deleted = stats.Deletions()
		stats.Free()
	}

	numDeltas, _ := diff.NumDeltas()
	for i := range numDeltas {
		delta, deltaErr := diff.Delta(i)
		if deltaErr != nil {
			continue
		}

		path := delta.NewFile.Path
		if path == "" {
			path = delta.OldFile.Path
		}

		rec.fileExts[extOf(path)]++
	}

	return rec, nil
}

func extOf(path string) string {
	idx := strings.LastIndex(path, ".")
	if idx < 0 || idx == len(path)-1 {
		return "no_ext"
	}

	return path[idx+1:]
}

type authorAccumulator struct {
	commits      int
	linesAdded   int
	linesDeleted int
	activeDays   map[string]struct{}
	fileTypes    map[string]int
}

func buildForensicsReport(
	branches []string,
	branchActivity map[string]map[string]int,
	records []commitRecord,
) model.ForensicsReport {
	authorAcc := make(map[string]*authorAccumulator)
	daily := make(map[string]*periodTally)
	weekly := make(map[string]*periodTally)
	monthly := make(map[string]*periodTally)

	var suspicious []model.SuspiciousCommit

	dummyCount := 0

	var prev *commitRecord

	for i := range records {
		rec := &records[i]

		dayKey := rec.when.Format("2006-01-02")
		weekKey := sundayWeekKey(rec.when)
		monthKey := rec.when.Format("2006-01")

		bumpPeriod(daily, dayKey, rec.author)
		bumpPeriod(weekly, weekKey, rec.author)
		bumpPeriod(monthly, monthKey, rec.author)

		acc, ok := authorAcc[rec.author]
		if !ok {
			acc = &authorAccumulator{activeDays: make(map[string]struct{}), fileTypes: make(map[string]int)}
			authorAcc[rec.author] = acc
		}

		acc.commits++
		acc.activeDays[dayKey] = struct{}{}
		acc.linesAdded += rec.added
		acc.linesDeleted += rec.deleted

		for ext, count := range rec.fileExts {
			acc.fileTypes[ext] += count
		}

		var reasons []string

		if rec.added == 0 && rec.deleted == 0 {
			reasons = append(reasons, "Empty/Dummy Commit")
			dummyCount++
		}

		if prev != nil {
			diffSecs := rec.when.Sub(prev.when).Seconds()

			if rec.message == prev.message && diffSecs < forensicsSpamWindowSecs {
				reasons = append(reasons, "Repeated Commit (Spam)")
			}

			if diffSecs < forensicsSuperhumanSecs {
				reasons = append(reasons, "Superhuman Speed (<10s)")
			}
		}

		if len(reasons) > 0 {
			suspicious = append(suspicious, model.SuspiciousCommit{
				ShortHash: shortHash(rec.hash),
				Author:    rec.author,
				Message:   snippet(rec.message, forensicsMessageSnippetLen),
				Reasons:   reasons,
			})
		}

		prev = rec
	}

	authorStats := make([]model.AuthorStats, 0, len(authorAcc))

	for author, acc := range authorAcc {
		authorStats = append(authorStats, model.AuthorStats{
			Author:       author,
			Commits:      acc.commits,
			LinesChanged: acc.linesAdded + acc.linesDeleted,
			ActiveDays:   len(acc.activeDays),
			TopFileTypes: topThreeFileTypes(acc.fileTypes),
		})
	}

	sort.Slice(authorStats, func(i, j int) bool {
		return authorStats[i].Commits > authorStats[j].Commits
	})

	return model.ForensicsReport{
		TotalCommits:       len(records),
		Branches:           branches,
		BranchCommitCounts: branchActivity,
		AuthorStats:        authorStats,
		DummyCommits:       dummyCount,
		Suspicious:         suspicious,
		TopDaily:           periodWinner(daily),
		TopWeekly:          periodWinner(weekly),
		TopMonthly:         periodWinner(monthly),
	}
}

// periodTally counts commits per author within one period (day/week/month),
// keeping the order authors first appeared in so ties break the same way on
// every run instead of depending on Go's randomized map iteration.
type periodTally struct {
	order  []string
	counts map[string]int
}

func bumpPeriod(periods map[string]*periodTally, key, author string) {
	tally, ok := periods[key]
	if !ok {
		tally = &periodTally{counts: make(map[string]int)}
		periods[key] = tally
	}

	if _, seen := tally.counts[author]; !seen {
		tally.order = append(tally.order, author)
	}

	tally.counts[author]++
}

// periodWinner finds, for each period, the author with the most commits
// that period, then tallies how many periods each author led. Ties on
// lead-count break on first-seen order, matching Counter.most_common.
// Periods are visited in key order (chronological, since day/week/month
// keys are zero-padded and lexicographically sortable) and each period's
// commit-count tie is broken by the author's first commit in that period,
// so the result is independent of Go's map iteration order.
func periodWinner(periods map[string]*periodTally) model.PeriodWinner {
	keys := make([]string, 0, len(periods))
	for key := range periods {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	leadCounts := make(map[string]int)
	order := make([]string, 0)

	for _, key := range keys {
		tally := periods[key]
		top, topCount := "", -1

		for _, author := range tally.order {
			if c := tally.counts[author]; c > topCount {
				top, topCount = author, c
			}
		}

		if top == "" {
			continue
		}

		if _, seen := leadCounts[top]; !seen {
			order = append(order, top)
		}

		leadCounts[top]++
	}

	best, bestWins := "None", 0

	for _, author := range order {
		if leadCounts[author] > bestWins {
			best, bestWins = author, leadCounts[author]
		}
	}

	return model.PeriodWinner{Author: best, Wins: bestWins}
}

func topThreeFileTypes(fileTypes map[string]int) [3]string {
	type kv struct {
		ext   string
		count int
	}

	pairs := make([]kv, 0, len(fileTypes))
	for ext, count := range fileTypes {
		pairs = append(pairs, kv{ext, count})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count != pairs[j].count {
			return pairs[i].count > pairs[j].count
		}

		return pairs[i].ext < pairs[j].ext
	})

	var out [3]string

	for i := 0; i < forensicsTopFileTypes && i < len(pairs); i++ {
		out[i] = pairs[i].ext
	}

	return out
}

// sundayWeekKey reproduces Python's strftime("%Y-W%U"): week number with
// Sunday as the first day of the week, zero-padded, where days before
// the year's first Sunday fall in week 00.
func sundayWeekKey(t time.Time) string {
	yday := t.YearDay() - 1
	wday := int(t.Weekday())
	week := (yday - wday + 7) / 7

	return fmt.Sprintf("%s-W%02d", t.Format("2006"), week)
}

func shortHash(h gitlib.Hash) string {
	s := h.String()
	if len(s) <= forensicsShortHashLen {
		return s
	}

	return s[:forensicsShortHashLen]
}

func snippet(s string, limit int) string {
	if len(s) <= limit {
		return s
	}

	return s[:limit]
}
