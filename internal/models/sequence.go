package models

// SequenceCounter is the per-(store, day) invoice counter row kept on the
// remote backend. Value is the count of invoices issued for that store on
// SeqDate; the key rolling over at midnight resets the sequence implicitly.
type SequenceCounter struct {
	ID      string
	UserID  string
	StoreID string

	// SeqDate is the local calendar day in YYYY-MM-DD form.
	SeqDate string

	Value int
}
