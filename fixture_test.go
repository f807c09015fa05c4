package jpostcode

import (
	"fmt"
	"strings"
	"testing"
)

// shibuyaAreas are the 7-digit codes under legacy code 150 in the fixture.
var shibuyaAreas = []struct{ code, area string }{
	{"1500000", "以下に掲載がない場合"},
	{"1500001", "神宮前"},
	{"1500002", "渋谷"},
	{"1500011", "東"},
	{"1500012", "広尾"},
	{"1500013", "恵比寿"},
	{"1500021", "恵比寿西"},
	{"1500022", "恵比寿南"},
	{"1500031", "桜丘町"},
	{"1500032", "鶯谷町"},
	{"1500033", "猿楽町"},
	{"1500034", "代官山町"},
	{"1500035", "鉢山町"},
}

// fixtureRecords returns a small KEN_ALL-shaped dataset, sorted by code:
//   - legacy 001: four Sapporo Kita-ku codes
//   - legacy 150: thirteen Shibuya-ku codes, 1500031 listed twice
//   - legacy 16305: three Shinjuku-ku codes
//   - legacy 498: one code shared by two prefectures
func fixtureRecords() []Record {
	records := []Record{
		{JISCode: "01102", LegacyCode: "001", Code: "0010000", Prefecture: "北海道", City: "札幌市北区", Area: "以下に掲載がない場合"},
		{JISCode: "01102", LegacyCode: "001", Code: "0010010", Prefecture: "北海道", City: "札幌市北区", Area: "北十条西（１～４丁目）"},
		{JISCode: "01102", LegacyCode: "001", Code: "0010011", Prefecture: "北海道", City: "札幌市北区", Area: "北十一条西（１～４丁目）"},
		{JISCode: "01102", LegacyCode: "001", Code: "0010012", Prefecture: "北海道", City: "札幌市北区", Area: "北十二条西（１～４丁目）"},
	}
	for _, a := range shibuyaAreas {
		records = append(records, Record{JISCode: "13113", LegacyCode: "150", Code: a.code, Prefecture: "東京都", City: "渋谷区", Area: a.area})
		if a.code == "1500031" {
			records = append(records, Record{JISCode: "13113", LegacyCode: "150", Code: a.code, Prefecture: "東京都", City: "渋谷区", Area: a.area})
		}
	}
	records = append(records,
		Record{JISCode: "13104", LegacyCode: "16305", Code: "1630401", Prefecture: "東京都", City: "新宿区", Area: "西新宿新宿住友ビル（地階・階層不明）"},
		Record{JISCode: "13104", LegacyCode: "16305", Code: "1630402", Prefecture: "東京都", City: "新宿区", Area: "西新宿新宿住友ビル（１階）"},
		Record{JISCode: "13104", LegacyCode: "16305", Code: "1630403", Prefecture: "東京都", City: "新宿区", Area: "西新宿新宿住友ビル（２階）"},
		Record{JISCode: "23235", LegacyCode: "498", Code: "4980000", Prefecture: "愛知県", City: "弥富市", Area: "以下に掲載がない場合"},
		Record{JISCode: "24303", LegacyCode: "498", Code: "4980000", Prefecture: "三重県", City: "桑名郡木曽岬町", Area: "以下に掲載がない場合"},
	)
	return records
}

// buildFixture builds the fixture index, failing the test on error.
func buildFixture(t testing.TB, opts ...BuildOption) (*Index, BuildStats) {
	t.Helper()
	idx, stats, err := BuildIndex(fixtureRecords(), opts...)
	if err != nil {
		t.Fatalf("BuildIndex() error = %v", err)
	}
	return idx, stats
}

// kenAllLine renders a record as a 15 column KEN_ALL CSV line.
func kenAllLine(r Record) string {
	legacy := r.LegacyCode
	if len(legacy) < 5 {
		legacy += strings.Repeat(" ", 5-len(legacy))
	}
	return fmt.Sprintf("%s,\"%s\",\"%s\",\"ｶﾅ\",\"ｶﾅ\",\"ｶﾅ\",\"%s\",\"%s\",\"%s\",0,0,0,0,0,0\r\n",
		r.JISCode, legacy, r.Code, r.Prefecture, r.City, r.Area)
}

// kenAllCSV renders records in the KEN_ALL CSV layout.
func kenAllCSV(records []Record) string {
	var b strings.Builder
	for _, r := range records {
		b.WriteString(kenAllLine(r))
	}
	return b.String()
}
