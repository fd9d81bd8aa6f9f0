package ports

import "time"

// Clock es la fuente de tiempo para los timestamps de las apuestas.
type Clock interface {
	Now() time.Time
}

// SystemClock usa time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
