package endpoints

import (
	"regexp"
	"strings"

	"github.com/dshills/reporecall/pkg/types"
)

// match is what a route pattern extracts from one line
type match struct {
	methods []string
	route   string
	handler string
}

// routePattern recognizes one route declaration idiom
type routePattern struct {
	framework string
	re        *regexp.Regexp
	extract   func(m []string) (match, bool)
}

var (
	methodListRe     = regexp.MustCompile(`methods\s*=\s*[\[(]([^\])]*)[\])]`)
	quotedRe         = regexp.MustCompile(`['"]([A-Za-z]+)['"]`)
	springMethodRe   = regexp.MustCompile(`RequestMethod\.([A-Z]+)`)
	springRouteRe    = regexp.MustCompile(`(?:value|path)\s*=\s*\{?\s*"([^"]*)"`)
	springFirstRe    = regexp.MustCompile(`^\(\s*\{?\s*"([^"]*)"`)
	gorillaMethodsRe = regexp.MustCompile(`\.Methods\(([^)]*)\)`)
	goMethodPrefixRe = regexp.MustCompile(`^([A-Z]+)\s+(/.*)$`)
	railsViaRe       = regexp.MustCompile(`via:\s*(\[[^\]]*\]|:\w+)`)
	railsSymbolRe    = regexp.MustCompile(`:(\w+)`)
	railsToRe        = regexp.MustCompile(`(?:to:|=>)\s*['"]([^'"]+)['"]`)
	laravelArrayRe   = regexp.MustCompile(`\[\s*([\w\\]+)::class\s*,\s*['"](\w+)['"]\s*\]`)
	laravelStringRe  = regexp.MustCompile(`['"]([\w\\]+@\w+)['"]`)
	argIdentRe       = regexp.MustCompile(`,\s*([A-Za-z_$][\w$.]*)`)
)

// patternsByLanguage gates each idiom to the languages it belongs to.
// Patterns are tried in order and the first match wins for a line.
var patternsByLanguage = map[string][]*routePattern{
	"python":     {fastAPIPattern, flaskPattern, djangoPattern},
	"javascript": {nestPattern, expressPattern},
	"typescript": {nestPattern, expressPattern},
	"java":       {springMappingPattern, springRequestPattern},
	"kotlin":     {springMappingPattern, springRequestPattern},
	"go":         {goHTTPPattern, goGinPattern, goChiPattern},
	"ruby":       {railsPattern},
	"php":        {laravelPattern},
}

// @app.get("/x"), @router.post("/x")
var fastAPIPattern = &routePattern{
	framework: "python-fastapi",
	re:        regexp.MustCompile(`^\s*@[A-Za-z_][\w.]*\.(get|post|put|delete|patch|options|head)\(\s*[rfbu]?['"]([^'"]+)['"]`),
	extract: func(m []string) (match, bool) {
		return match{methods: []string{m[1]}, route: m[2]}, true
	},
}

// @app.route("/x", methods=["GET", "POST"]), @router.api_route(...)
var flaskPattern = &routePattern{
	framework: "python-flask",
	re:        regexp.MustCompile(`^\s*@[A-Za-z_][\w.]*\.(?:route|api_route)\(\s*[rfbu]?['"]([^'"]+)['"](.*)`),
	extract: func(m []string) (match, bool) {
		return match{methods: listedMethods(methodListRe, m[2]), route: m[1]}, true
	},
}

// path("users/", views.users), re_path(r"^x/$", view), url(...)
var djangoPattern = &routePattern{
	framework: "python-django",
	re:        regexp.MustCompile(`(?:^|[^\w.])(?:path|re_path|url)\(\s*r?['"]([^'"]*)['"]\s*,\s*([^,)]+)`),
	extract: func(m []string) (match, bool) {
		handler := strings.TrimSuffix(strings.TrimSpace(m[2]), ".as_view(")
		// include(...) and inline callables have no resolvable name
		if strings.ContainsAny(handler, "('\" ") {
			handler = ""
		}
		return match{route: m[1], handler: handler}, true
	},
}

// app.get('/x', handler), router.post("/x", ...)
var expressPattern = &routePattern{
	framework: "node-express",
	re:        regexp.MustCompile("\\b[A-Za-z_$][\\w$]*\\.(get|post|put|delete|patch|options|head|all)\\(\\s*['\"`](/[^'\"`]*)['\"`](.*)"),
	extract: func(m []string) (match, bool) {
		return match{methods: []string{m[1]}, route: m[2], handler: lastIdentifierArg(m[3])}, true
	},
}

// @Get(), @Post('login')
var nestPattern = &routePattern{
	framework: "node-nestjs",
	re:        regexp.MustCompile("^\\s*@(Get|Post|Put|Delete|Patch|Options|Head|All)\\(\\s*(?:['\"`]([^'\"`]*)['\"`])?\\s*\\)"),
	extract: func(m []string) (match, bool) {
		return match{methods: []string{m[1]}, route: m[2]}, true
	},
}

// @GetMapping("/x"), @PostMapping(value = "/x"), @GetMapping
var springMappingPattern = &routePattern{
	framework: "java-spring",
	re:        regexp.MustCompile(`@(Get|Post|Put|Delete|Patch)Mapping\b(.*)`),
	extract: func(m []string) (match, bool) {
		return match{methods: []string{m[1]}, route: springRoute(m[2])}, true
	},
}

// @RequestMapping(value = "/x", method = {RequestMethod.GET, RequestMethod.POST})
var springRequestPattern = &routePattern{
	framework: "java-spring",
	re:        regexp.MustCompile(`@RequestMapping\b(.*)`),
	extract: func(m []string) (match, bool) {
		var methods []string
		for _, sm := range springMethodRe.FindAllStringSubmatch(m[1], -1) {
			methods = append(methods, sm[1])
		}
		return match{methods: methods, route: springRoute(m[1])}, true
	},
}

// http.HandleFunc("/x", h), mux.Handle("GET /x", h), r.HandleFunc("/x", h).Methods("GET", "POST")
var goHTTPPattern = &routePattern{
	framework: "go-net-http",
	re:        regexp.MustCompile(`\b[A-Za-z_]\w*\.(?:HandleFunc|Handle)\(\s*"([^"]+)"(.*)`),
	extract: func(m []string) (match, bool) {
		route := m[1]
		out := match{route: route, handler: lastIdentifierArg(m[2])}
		if pm := goMethodPrefixRe.FindStringSubmatch(route); pm != nil {
			out.methods = []string{pm[1]}
			out.route = pm[2]
		}
		if gm := gorillaMethodsRe.FindStringSubmatch(m[2]); gm != nil {
			out.methods = nil
			for _, q := range quotedRe.FindAllStringSubmatch(gm[1], -1) {
				out.methods = append(out.methods, q[1])
			}
			out.handler = lastIdentifierArg(m[2][:strings.Index(m[2], ".Methods(")])
		}
		if !strings.HasPrefix(out.route, "/") {
			return match{}, false
		}
		return out, true
	},
}

// r.GET("/x", h) for gin and echo
var goGinPattern = &routePattern{
	framework: "go-gin",
	re:        regexp.MustCompile(`\b[A-Za-z_]\w*\.(GET|POST|PUT|DELETE|PATCH|OPTIONS|HEAD|Any)\(\s*"(/[^"]*)"(.*)`),
	extract:   routerCall,
}

// r.Get("/x", h) for chi and fiber
var goChiPattern = &routePattern{
	framework: "go-chi",
	re:        regexp.MustCompile(`\b[A-Za-z_]\w*\.(Get|Post|Put|Delete|Patch|Options|Head)\(\s*"(/[^"]*)"(.*)`),
	extract:   routerCall,
}

func routerCall(m []string) (match, bool) {
	return match{methods: []string{m[1]}, route: m[2], handler: lastIdentifierArg(m[3])}, true
}

// get '/x', to: 'users#index'; match '/x' => 'a#b', via: [:get, :post]
var railsPattern = &routePattern{
	framework: "ruby-rails",
	re:        regexp.MustCompile(`^\s*(get|post|put|patch|delete|options|match)\s*\(?\s*['"]([^'"]+)['"](.*)`),
	extract: func(m []string) (match, bool) {
		out := match{route: m[2]}
		if tm := railsToRe.FindStringSubmatch(m[3]); tm != nil {
			out.handler = tm[1]
		}
		if m[1] != "match" {
			out.methods = []string{m[1]}
			return out, true
		}
		if vm := railsViaRe.FindStringSubmatch(m[3]); vm != nil {
			for _, s := range railsSymbolRe.FindAllStringSubmatch(vm[1], -1) {
				out.methods = append(out.methods, s[1])
			}
		}
		return out, true
	},
}

// Route::get('/x', [UserController::class, 'index']); Route::match(['get', 'post'], '/x', ...)
var laravelPattern = &routePattern{
	framework: "php-laravel",
	re:        regexp.MustCompile(`Route::(get|post|put|patch|delete|options|any|match)\(\s*(?:\[([^\]]*)\]\s*,\s*)?['"]([^'"]+)['"](.*)`),
	extract: func(m []string) (match, bool) {
		out := match{route: m[3]}
		switch m[1] {
		case "match":
			for _, q := range quotedRe.FindAllStringSubmatch(m[2], -1) {
				out.methods = append(out.methods, q[1])
			}
		case "any":
		default:
			out.methods = []string{m[1]}
		}
		if am := laravelArrayRe.FindStringSubmatch(m[4]); am != nil {
			out.handler = am[1] + "@" + am[2]
		} else if sm := laravelStringRe.FindStringSubmatch(m[4]); sm != nil {
			out.handler = sm[1]
		}
		return out, true
	},
}

// listedMethods reads a methods=[...] list, nil when absent
func listedMethods(re *regexp.Regexp, s string) []string {
	lm := re.FindStringSubmatch(s)
	if lm == nil {
		return nil
	}
	var out []string
	for _, q := range quotedRe.FindAllStringSubmatch(lm[1], -1) {
		out = append(out, q[1])
	}
	return out
}

// springRoute extracts the path of a mapping annotation's arguments.
// A bare annotation maps the controller root.
func springRoute(args string) string {
	if rm := springRouteRe.FindStringSubmatch(args); rm != nil {
		return rm[1]
	}
	if rm := springFirstRe.FindStringSubmatch(strings.TrimSpace(args)); rm != nil {
		return rm[1]
	}
	return "/"
}

// lastIdentifierArg returns the last bare identifier argument of a call,
// the usual position of the handler after any middleware. Arguments that
// are themselves calls or expressions are not identifiers.
func lastIdentifierArg(rest string) string {
	last := ""
	for _, loc := range argIdentRe.FindAllStringSubmatchIndex(rest, -1) {
		tail := strings.TrimLeft(rest[loc[1]:], " \t")
		if tail == "" || tail[0] == ',' || tail[0] == ')' {
			last = rest[loc[2]:loc[3]]
		}
	}
	return last
}

// normalizeMethods upper-cases, maps catch-all spellings to MethodAny and
// removes duplicates. An empty list becomes a single MethodAny.
func normalizeMethods(methods []string) []string {
	seen := make(map[string]bool, len(methods))
	var out []string
	for _, m := range methods {
		m = strings.ToUpper(strings.TrimSpace(m))
		switch m {
		case "":
			continue
		case "ALL", "ANY", "*":
			m = types.MethodAny
		}
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return []string{types.MethodAny}
	}
	return out
}
