package detector

// Fuse combines the mean error level with the metadata flags into a single
// suspicion score in [0, 1]. Every flag adds FlagWeight.
func Fuse(meanELA float64, suspiciousTags []string) float64 {
	return clampUnit(meanELA + FlagWeight*float64(len(suspiciousTags)))
}
