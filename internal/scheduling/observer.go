package scheduling

// Observer receives booking side effects for instrumentation.
type Observer interface {
	AppointmentCreated()
	AppointmentCancelled()
	BookingConflict()
	TimeslotsCreated(n int)
	RatingApplied()
}

type NopObserver struct{}

func (NopObserver) AppointmentCreated()  {}
func (NopObserver) AppointmentCancelled() {}
func (NopObserver) BookingConflict()      {}
func (NopObserver) TimeslotsCreated(int)  {}
func (NopObserver) RatingApplied()        {}
