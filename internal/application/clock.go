package application

import "time"

// Clock abstracts time.Now sehingga submission timestamps bisa dites deterministik.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall-clock implementation used in production wiring.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
