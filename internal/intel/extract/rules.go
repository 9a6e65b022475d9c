package extract

import "regexp"

// Every pattern runs against display-normalized text (upper-case, single
// spaces). lead and tail stand in for word boundaries that also treat the
// punctuation inside calibers (".", "-", "/") as part of the token.
const (
	lead = `(?:^|[^A-Z0-9.\-/])`
	tail = `(?:$|[^A-Z0-9])`
)

// rule is one entry of an ordered table. Group 1 of re is the raw value;
// canonical, when set, replaces it. shotshell marks caliber rules whose
// match may be followed by a chamber length.
type rule struct {
	name      string
	re        *regexp.Regexp
	canonical string
	shotshell bool
}

func mustRule(name, pattern, canonical string) rule {
	return rule{name: name, re: regexp.MustCompile(pattern), canonical: canonical}
}

// Caliber rules, most specific first.
var caliberRules = []rule{
	mustRule("magnum",
		lead+`(\.?(?:22|357|41|44|454|460|500)\s?(?:MAGNUM|MAG|WMR))`+tail, ""),
	mustRule("named-suffix",
		lead+`(\.?\d{2,3}\s?(?:LONG RIFLE|LR|ACP|AUTO|SPECIAL|SPL|S&W|SW|SIG|BLACKOUT|BLK|AAC|WINCHESTER|WIN|REMINGTON|REM|WYLDE|LONG COLT|COLT|LC|NATO|GOVT))`+tail, ""),
	mustRule("decimal-named",
		lead+`(\d\.\d{1,2}\s?(?:CREEDMOOR|CREED|CM|NATO|PRC|GRENDEL|SPC))`+tail, ""),
	mustRule("metric-named",
		lead+`(\d{1,2}(?:\.\d{1,2})?\s?MM\s(?:LUGER|PARABELLUM|PARA|AUTO|MAKAROV|KURZ|NATO|REM|MAUSER))`+tail, ""),
	mustRule("metric-compound",
		lead+`(\d{1,2}(?:\.\d{1,2})?\s?X\s?\d{2}(?:MM|R)?)`+tail, ""),
	mustRule("hyphenated",
		`(?:^|[^A-Z0-9])(\.?(?:30-06|25-06|22-250|30-30|45-70|410/45|45/410)(?:\s(?:SPRINGFIELD|SPRG|GOVERNMENT|GOVT|REM|WIN))?)`+tail, ""),
	shotshell(mustRule("gauge",
		lead+`(\d{1,2}\s?(?:GAUGE|GA))`+tail, "")),
	shotshell(mustRule("bore",
		lead+`(\.?410(?:\s?(?:BORE|GAUGE|GA))?)`+tail, "")),
	mustRule("metric",
		lead+`(\d{1,2}(?:\.\d{1,2})?\s?MM)`+tail, ""),
	// Bare decimals are only calibers from this list. An inch mark right
	// after the number makes it a barrel length instead.
	mustRule("decimal",
		lead+`(5\.56|5\.45|5\.7|6\.8)(?:$|[^A-Z0-9."'”+])`, ""),
	mustRule("caliber-word",
		lead+`(\.?\d{2,3}\s?CAL(?:IBER)?)`+tail, ""),
	mustRule("dotted",
		lead+`(\.(?:17|22|223|243|270|308|357|38|380|40|44|45))`+tail, ""),
}

func shotshell(r rule) rule {
	r.shotshell = true
	return r
}

// chamberRule matches a shell length directly after a gauge, as the 3" in
// 12GA 3" 28". It is masked so the barrel rules skip it.
var chamberRule = regexp.MustCompile(
	`^\s?((?:2(?:\.75|[\s-]3/4)|3(?:\.5|[\s-]1/2)?)\s?(?:"|''|”|INCHES|INCH|IN))(?:\s?(?:CHAMBER|CHMBR|SHELLS?))?` + tail)

// Barrel rules. The BBL/BARREL form is tried first so that an unrelated
// inch measurement elsewhere in the name does not win.
var barrelRules = []rule{
	mustRule("barrel-suffixed",
		`(?:^|[^0-9.])(\d{1,2}(?:\.\d{1,3})?)\s?(?:"|''|”|INCHES|INCH|IN)?\s?(?:BBL|BARREL)`+tail, ""),
	mustRule("inch-mark",
		`(?:^|[^0-9.])(\d{1,2}(?:\.\d{1,3})?)\s?(?:"|''|”|INCHES|INCH|IN`+tail+`)`, ""),
}

// Capacity rules. Compound "17+1" is tried before a plain round count.
var capacityRules = []rule{
	mustRule("compound",
		`(?:^|[^0-9.])(\d{1,3}\s?\+\s?\d)(?:[\s-]?(?:ROUNDS|ROUND|RDS|RD|SHOTS|SHOT))?`+tail, ""),
	mustRule("rounds",
		`(?:^|[^0-9.])(\d{1,3})[\s-]?(?:ROUNDS|ROUND|RDS|RD|SHOTS|SHOT)`+tail, ""),
}

func keyword(pattern string) string {
	return `(?:^|[^A-Z0-9])(` + pattern + `)` + tail
}

// Action rules map keyword alternations to one canonical value each. More
// specific phrases come before the phrases they contain.
var actionRules = []rule{
	mustRule("striker", keyword(`STRIKER[\s-]?FIRED|STRIKER`), "STRIKER-FIRED"),
	mustRule("da-sa", keyword(`DA/SA|DA-SA|DA SA|DOUBLE/SINGLE ACTION|TDA`), "DA/SA"),
	mustRule("dao", keyword(`DAO|DOUBLE[\s-]ACTION[\s-]ONLY`), "DAO"),
	mustRule("single-action", keyword(`SINGLE[\s-]ACTION|SAO`), "SINGLE-ACTION"),
	mustRule("double-action", keyword(`DOUBLE[\s-]ACTION`), "DOUBLE-ACTION"),
	mustRule("semi-automatic", keyword(`SEMI[\s-]?AUTOMATIC|SEMI[\s-]?AUTO`), "SEMI-AUTOMATIC"),
	mustRule("bolt", keyword(`BOLT[\s-]?ACTION|BOLT`), "BOLT-ACTION"),
	mustRule("pump", keyword(`PUMP[\s-]?ACTION|PUMP|SLIDE[\s-]ACTION`), "PUMP-ACTION"),
	mustRule("lever", keyword(`LEVER[\s-]?ACTION|LEVER`), "LEVER-ACTION"),
	mustRule("break", keyword(`BREAK[\s-]?(?:ACTION|OPEN)|OVER[\s/-]?UNDER|O/U|SIDE[\s-]BY[\s-]SIDE|SXS`), "BREAK-ACTION"),
	mustRule("single-shot", keyword(`SINGLE[\s-]SHOT`), "SINGLE-SHOT"),
}

// Firearm type rules. Revolver and pistol come first so an "AR-15 PISTOL"
// is a pistol.
var firearmTypeRules = []rule{
	mustRule("revolver", keyword(`REVOLVER`), "REVOLVER"),
	mustRule("pistol", keyword(`PISTOL|HANDGUN|1911(?:A1)?`), "PISTOL"),
	mustRule("shotgun", keyword(`SHOTGUN`), "SHOTGUN"),
	mustRule("rifle", keyword(`RIFLE|CARBINE|AR-?15|AR-?10|AK-?47|AK|SKS`), "RIFLE"),
}
