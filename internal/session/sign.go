package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// timeNow はテストから差し替えられる現在時刻関数。
var timeNow = time.Now

// sign は値を「base64url(value)|発行時刻unix秒|hex(hmac)」形式で署名する。
// HMAC-SHA256は値とタイムスタンプの両方をカバーするため、
// タイムスタンプだけを付け替えた延命もできない。
func sign(secret []byte, value string, now time.Time) string {
	payload := base64.RawURLEncoding.EncodeToString([]byte(value)) +
		"|" + strconv.FormatInt(now.Unix(), 10)
	return payload + "|" + computeMAC(secret, payload)
}

// verify は署名済み文字列を検証し、元の値を返す。
// 署名不一致・形式不正・maxAge秒より古い場合はfalseを返す。
// maxAgeが0以下の場合は期限チェックを行わない。
func verify(secret []byte, signed string, maxAge int, now time.Time) (string, bool) {
	// 末尾の「|mac」を切り離す。payloadは「value|timestamp」。
	idx := strings.LastIndex(signed, "|")
	if idx <= 0 || idx == len(signed)-1 {
		return "", false
	}
	payload := signed[:idx]
	mac := signed[idx+1:]

	expected := computeMAC(secret, payload)
	if !hmac.Equal([]byte(mac), []byte(expected)) {
		return "", false
	}

	encoded, tsStr, ok := strings.Cut(payload, "|")
	if !ok {
		return "", false
	}

	ts, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return "", false
	}
	issued := time.Unix(ts, 0)
	if issued.After(now) {
		// 未来の発行時刻は受け付けない
		return "", false
	}
	if maxAge > 0 && now.Sub(issued) > time.Duration(maxAge)*time.Second {
		return "", false
	}

	value, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", false
	}
	return string(value), true
}

func computeMAC(secret []byte, payload string) string {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}
