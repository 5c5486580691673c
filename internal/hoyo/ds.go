package hoyo

import (
	"crypto/md5"
	"crypto/rand"
	"fmt"
	"strconv"
	"time"
)

// Overseas web salt used by the HoYoLAB game-record endpoints.
const dsSalt = "6s25p5ox5y14umn1p61aqyyvbvvl3lrt"

// dsHeader produces the DS signature header: "<t>,<r>,<md5>".
func dsHeader(now time.Time) string {
	t := now.Unix()
	r := randToken(6)
	sum := md5.Sum([]byte("salt=" + dsSalt + "&t=" + strconv.FormatInt(t, 10) + "&r=" + r))
	return fmt.Sprintf("%d,%s,%x", t, r, sum)
}

func randToken(n int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// fall back to a fixed token; the signature stays well-formed
		return "abcdef"[:n]
	}
	for i := range b {
		b[i] = letters[int(b[i])%len(letters)]
	}
	return string(b)
}

// recognizeServer derives the game server region from the uid prefix.
func recognizeServer(uid int64) (string, error) {
	s := strconv.FormatInt(uid, 10)
	if len(s) < 9 {
		return "", fmt.Errorf("uid %d too short", uid)
	}
	switch s[0] {
	case '6':
		return "os_usa", nil
	case '7':
		return "os_euro", nil
	case '8':
		return "os_asia", nil
	case '9':
		return "os_cht", nil
	default:
		return "", fmt.Errorf("uid %d is not in a supported region", uid)
	}
}
