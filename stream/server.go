package stream

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

var upgrader = websocket.Upgrader{
	HandshakeTimeout: 5 * time.Second,
}

// NewServer returns the preview server for hub:
//
//	GET  /               preview page
//	GET  /api/client     websocket
//	GET  /api/state      current state
//	POST /api/pause      pause the pipeline
//	POST /api/resume     resume the pipeline
//	POST /api/stop       stop the pipeline
//	POST /api/record     body "on" or "off" toggles recording
//
// Control endpoints answer 409 Conflict when the pipeline is not in a state
// that allows the transition.
func NewServer(hub *Hub) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetOutput(io.Discard)

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Output: hub.logger.Writer(),
	}))
	e.Use(middleware.Recover())

	e.GET("/", func(c echo.Context) error {
		return c.HTML(http.StatusOK, indexPage)
	})

	api := e.Group("/api")

	api.GET("/client", func(c echo.Context) error {
		ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			return err
		}

		hub.HandleConn(ws)

		return nil
	})

	api.GET("/state", func(c echo.Context) error {
		state := hub.State()
		return c.JSON(http.StatusOK, &state)
	})

	transition := func(name string, apply func() bool) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !apply() {
				return echo.NewHTTPError(http.StatusConflict,
					"mosaic stream: cannot "+name+" while "+hub.ctl.State().String())
			}

			state := hub.State()
			return c.JSON(http.StatusOK, &state)
		}
	}

	api.POST("/pause", transition("pause", hub.ctl.Pause))
	api.POST("/resume", transition("resume", hub.ctl.Resume))
	api.POST("/stop", transition("stop", hub.ctl.Stop))

	api.POST("/record", func(c echo.Context) error {
		data, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return err
		}

		var on bool
		switch v := strings.TrimSpace(string(data)); v {
		case "on":
			on = true
		case "off":
			on = false
		default:
			on, err = strconv.ParseBool(v)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest,
					"mosaic stream: record expects on or off")
			}
		}

		hub.ctl.SetRecording(on)

		state := hub.State()
		return c.JSON(http.StatusOK, &state)
	})

	return e
}

const indexPage = `<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>mosaic</title>
<style>
body { background: #111; color: #ccc; font-family: monospace; margin: 1em; }
img { display: block; max-width: 100%; image-rendering: pixelated; background: #000; }
button { margin-right: .5em; }
</style>
</head>
<body>
<p id="state">connecting</p>
<p>
<button onclick="post('pause')">pause</button>
<button onclick="post('resume')">resume</button>
<button onclick="post('stop')">stop</button>
<button onclick="post('record', 'on')">record on</button>
<button onclick="post('record', 'off')">record off</button>
</p>
<img id="frame">
<script>
const packetVideo = 1, packetMetadata = 2;
const frame = document.getElementById("frame");
const label = document.getElementById("state");
let url = null;

function post(action, body) {
  fetch("/api/" + action, {method: "POST", body: body || ""});
}

const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/api/client");
ws.binaryType = "arraybuffer";
ws.onopen = () => ws.send(JSON.stringify({id: "browser", subscription: 3}));
ws.onclose = () => { label.textContent = "disconnected"; };
ws.onmessage = (ev) => {
  const data = new Uint8Array(ev.data);
  if (data[0] === packetVideo) {
    if (url) URL.revokeObjectURL(url);
    url = URL.createObjectURL(new Blob([data.subarray(1)], {type: "image/png"}));
    frame.src = url;
  } else if (data[0] === packetMetadata) {
    const s = JSON.parse(new TextDecoder().decode(data.subarray(1)));
    label.textContent = [s.title, s.state, s.recording ? "recording" : "", s.frames + " frames"].filter(Boolean).join(" | ");
  }
};
</script>
</body>
</html>
`
