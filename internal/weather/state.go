package weather

// Classify derives the station state from the outcome of one update.
// A duplicate timestamp is not an error: the provider simply has nothing new
// since the last poll, which is reported the same way as a failed fetch.
func Classify(fetchOK, inserted bool) StationState {
	if fetchOK && inserted {
		return StateOnline
	}
	return StateOffline
}
