package scoring

// minSectorMembers is the smallest peer group whose average move is used
const minSectorMembers = 2

// FillSectorPerformance sets SectorPerformance to the mean daily change of each sector's
// members in snaps. Snapshots without a sector, or that already carry a value, are left alone.
func FillSectorPerformance(snaps []Snapshot) {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, s := range snaps {
		if s.Sector == "" {
			continue
		}
		if change, ok := s.DailyChange(); ok {
			sums[s.Sector] += change
			counts[s.Sector]++
		}
	}

	for i := range snaps {
		s := &snaps[i]
		if s.Sector == "" || s.SectorPerformance != nil || counts[s.Sector] < minSectorMembers {
			continue
		}
		avg := sums[s.Sector] / float64(counts[s.Sector])
		s.SectorPerformance = &avg
	}
}
