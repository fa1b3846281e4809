package storage

import "time"

func timeNowPlusHour() time.Time {
	return time.Now().UTC().Add(time.Hour)
}
