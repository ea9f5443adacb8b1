package browser

import (
	"github.com/go-rod/stealth"
)

// StealthScripts returns the ordered patch list installed before navigation.
// The go-rod/stealth bundle goes first; the hand-written patches after it
// pin values to the DefaultFingerprint profile.
func StealthScripts() []InitScript {
	return []InitScript{
		{Name: "rod-stealth", Source: stealth.JS},
		{Name: "webdriver", Source: webdriverJS},
		{Name: "plugins", Source: pluginsJS},
		{Name: "navigator", Source: navigatorJS},
		{Name: "chrome-runtime", Source: chromeRuntimeJS},
		{Name: "permissions", Source: permissionsJS},
		{Name: "webgl", Source: webglJS},
		{Name: "canvas", Source: canvasJS},
		{Name: "iframe", Source: iframeJS},
		{Name: "connection", Source: connectionJS},
	}
}

// wrapScript isolates a patch so that a throw never reaches the page.
func wrapScript(src string) string {
	return "(() => { try {\n" + src + "\n} catch (e) {} })();"
}

const webdriverJS = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
try { delete Object.getPrototypeOf(navigator).webdriver; } catch (e) {}
`

const pluginsJS = `
const plugins = [
  { name: 'Chrome PDF Plugin', description: 'Portable Document Format', filename: 'internal-pdf-viewer', length: 1 },
  { name: 'Chrome PDF Viewer', description: '', filename: 'mhjfbmdgcfjbbpaeojofohoefgiehjai', length: 1 },
  { name: 'Native Client', description: '', filename: 'internal-nacl-plugin', length: 2 },
];
const arr = Object.create(PluginArray.prototype);
plugins.forEach((p, i) => { arr[i] = p; });
Object.defineProperty(arr, 'length', { get: () => plugins.length });
arr.item = (i) => plugins[i] || null;
arr.namedItem = (name) => plugins.find((p) => p.name === name) || null;
arr.refresh = () => {};
Object.defineProperty(navigator, 'plugins', { get: () => arr });
`

const navigatorJS = `
const values = {
  languages: ['en-US', 'en', 'tr'],
  platform: 'Win32',
  hardwareConcurrency: 8,
  deviceMemory: 8,
  maxTouchPoints: 0,
};
for (const [key, value] of Object.entries(values)) {
  try { Object.defineProperty(navigator, key, { get: () => value }); } catch (e) {}
}
`

const chromeRuntimeJS = `
const now = () => Date.now() / 1000;
window.chrome = {
  runtime: {
    connect: () => {},
    sendMessage: () => {},
    onMessage: { addListener: () => {}, removeListener: () => {} },
    onConnect: { addListener: () => {}, removeListener: () => {} },
    id: undefined,
  },
  loadTimes: () => ({
    requestTime: now() - Math.random() * 2,
    startLoadTime: now() - Math.random(),
    commitLoadTime: now() - Math.random() * 0.5,
    finishDocumentLoadTime: now(),
    finishLoadTime: now(),
    firstPaintTime: now() - Math.random() * 0.3,
    firstPaintAfterLoadTime: 0,
    navigationType: 'Other',
    wasFetchedViaSpdy: true,
    wasNpnNegotiated: true,
    npnNegotiatedProtocol: 'h2',
    wasAlternateProtocolAvailable: false,
    connectionInfo: 'h2',
  }),
  csi: () => ({
    onloadT: Date.now(),
    startE: Date.now() - Math.floor(Math.random() * 1000),
    pageT: Math.random() * 2000 + 500,
    tran: 15,
  }),
  app: {
    isInstalled: false,
    InstallState: { INSTALLED: 'installed', NOT_INSTALLED: 'not_installed' },
    RunningState: { CANNOT_RUN: 'cannot_run', READY_TO_RUN: 'ready_to_run', RUNNING: 'running' },
  },
};
`

const permissionsJS = `
const originalQuery = window.navigator.permissions.query.bind(window.navigator.permissions);
window.navigator.permissions.query = (parameters) =>
  parameters && parameters.name === 'notifications'
    ? Promise.resolve({ state: Notification.permission })
    : originalQuery(parameters);
`

const webglJS = `
const patch = (proto) => {
  if (!proto) return;
  const getParameter = proto.getParameter;
  proto.getParameter = function (param) {
    if (param === 37445) return 'Intel Inc.';
    if (param === 37446) return 'Intel Iris OpenGL Engine';
    return getParameter.call(this, param);
  };
};
patch(window.WebGLRenderingContext && WebGLRenderingContext.prototype);
patch(window.WebGL2RenderingContext && WebGL2RenderingContext.prototype);
`

const canvasJS = `
const toDataURL = HTMLCanvasElement.prototype.toDataURL;
HTMLCanvasElement.prototype.toDataURL = function (type, quality) {
  if (this.width === 0 && this.height === 0) return toDataURL.call(this, type, quality);
  const ctx = this.getContext('2d');
  if (ctx) {
    const img = ctx.getImageData(0, 0, this.width, this.height);
    for (let i = 0; i < img.data.length; i += 4) img.data[i] ^= 1;
    ctx.putImageData(img, 0, 0);
  }
  return toDataURL.call(this, type, quality);
};
`

const iframeJS = `
Object.defineProperty(HTMLIFrameElement.prototype, 'contentWindow', {
  get: function () { return window; },
});
`

const connectionJS = `
Object.defineProperty(navigator, 'connection', {
  get: () => ({ effectiveType: '4g', rtt: 50, downlink: 10, saveData: false }),
});
`
