package domain

// StagedFile is an uploaded file held in temporary storage. URL is readable by
// the model API until it expires or the file is deleted by Key.
type StagedFile struct {
	Key string
	URL string
}
