package auth

import (
	"math/rand"

	"github.com/google/go-querystring/query"
)

const (
	secCodeModID     = "member::logging"
	loginHashCharset = "qazwsxedcrfvtgbyhnujmikolpQAZWSXEDCRFVTGBYHNUJIKOLP"
)

type captchaImageQuery struct {
	Mod    string `url:"mod"`
	Update int64  `url:"update"`
	IDHash string `url:"idhash"`
}

type captchaVerifyQuery struct {
	Mod       string `url:"mod"`
	Action    string `url:"action"`
	InAjax    int    `url:"inajax"`
	ModID     string `url:"modid"`
	IDHash    string `url:"idhash"`
	SecVerify string `url:"secverify"`
}

type loginQuery struct {
	Mod         string `url:"mod"`
	Action      string `url:"action"`
	LoginSubmit string `url:"loginsubmit"`
	HandleKey   string `url:"handlekey"`
	LoginHash   string `url:"loginhash"`
	InAjax      int    `url:"inajax"`
}

type loginForm struct {
	FormHash      string `url:"formhash"`
	Referer       string `url:"referer"`
	Username      string `url:"username"`
	Password      string `url:"password"`
	QuestionID    int    `url:"questionid"`
	Answer        string `url:"answer"`
	SecCodeHash   string `url:"seccodehash"`
	SecCodeModID  string `url:"seccodemodid"`
	SecCodeVerify string `url:"seccodeverify"`
}

func encode(v interface{}) (string, error) {
	values, err := query.Values(v)
	if err != nil {
		return "", err
	}
	return values.Encode(), nil
}

func randomLoginHash(rng *rand.Rand) string {
	b := make([]byte, 4)
	for i := range b {
		b[i] = loginHashCharset[rng.Intn(len(loginHashCharset))]
	}
	return "L" + string(b)
}
