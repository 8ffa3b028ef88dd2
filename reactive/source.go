package reactive

// sourceID is the identity the dependency store holds weakly. The pointer
// field keeps it non-zero-sized and off the tiny allocator, so weak pointers
// and cleanups on it always behave.
type sourceID struct {
	_ *byte
}

// Source gives a state object its identity in the dependency store. Embed it
// in any struct that is read or written through Track and Trigger. A Source
// must not be copied after first use; copies share the identity.
type Source struct {
	id *sourceID
}

func (s *Source) reactiveID() *sourceID {
	if s.id == nil {
		s.id = &sourceID{}
	}
	return s.id
}

// Target is anything with a Source, usually by embedding one.
type Target interface {
	reactiveID() *sourceID
}
