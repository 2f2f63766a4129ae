// File: internal/browser/probe.go
package browser

// domProbeJS is the in-page structural probe. It walks the rendered DOM
// (including open shadow roots), assigns contiguous highlight indices to
// actionable elements, optionally draws index badges, and returns a flat
// id-to-node map with a designated root id. Index assignment happens here,
// browser-side; the Go snapshot builder only reads the result.
const domProbeJS = `function (args) {
	const { doHighlight, focusIndex, viewportExpansion } = args;

	const HIGHLIGHT_CONTAINER_ID = "waypoint-highlight-container";
	const nodeMap = {};
	let nodeCounter = 0;
	let highlightCounter = 0;

	const INTERACTIVE_TAGS = new Set([
		"a", "button", "input", "select", "textarea", "summary", "details",
		"label", "option",
	]);
	const INTERACTIVE_ROLES = new Set([
		"button", "link", "checkbox", "radio", "tab", "menuitem", "option",
		"switch", "searchbox", "textbox", "combobox", "slider", "spinbutton",
	]);

	function removeHighlightContainer() {
		const el = document.getElementById(HIGHLIGHT_CONTAINER_ID);
		if (el) el.remove();
	}

	function highlightContainer() {
		let container = document.getElementById(HIGHLIGHT_CONTAINER_ID);
		if (!container) {
			container = document.createElement("div");
			container.id = HIGHLIGHT_CONTAINER_ID;
			container.style.position = "fixed";
			container.style.pointerEvents = "none";
			container.style.top = "0";
			container.style.left = "0";
			container.style.width = "100%";
			container.style.height = "100%";
			container.style.zIndex = "2147483647";
			document.body.appendChild(container);
		}
		return container;
	}

	function drawBadge(index, rect) {
		const colors = ["#FF5D5D", "#5DA9FF", "#7CFC00", "#FFB347", "#DA70D6",
			"#40E0D0", "#FFD700"];
		const color = colors[index % colors.length];
		const container = highlightContainer();

		const overlay = document.createElement("div");
		overlay.style.position = "fixed";
		overlay.style.border = "2px solid " + color;
		overlay.style.left = rect.left + "px";
		overlay.style.top = rect.top + "px";
		overlay.style.width = rect.width + "px";
		overlay.style.height = rect.height + "px";
		overlay.style.boxSizing = "border-box";

		const label = document.createElement("span");
		label.textContent = index;
		label.style.position = "absolute";
		label.style.top = "-18px";
		label.style.left = "0";
		label.style.background = color;
		label.style.color = "#fff";
		label.style.fontSize = "12px";
		label.style.padding = "0 4px";
		overlay.appendChild(label);
		container.appendChild(overlay);
	}

	function isVisible(el) {
		if (!el.getBoundingClientRect) return false;
		const rect = el.getBoundingClientRect();
		if (rect.width === 0 || rect.height === 0) return false;
		const style = window.getComputedStyle(el);
		return style.visibility !== "hidden" && style.display !== "none" &&
			style.opacity !== "0";
	}

	function isInteractive(el) {
		const tag = el.tagName.toLowerCase();
		if (INTERACTIVE_TAGS.has(tag)) return true;
		const role = el.getAttribute("role");
		if (role && INTERACTIVE_ROLES.has(role.toLowerCase())) return true;
		if (el.hasAttribute("onclick") || el.hasAttribute("contenteditable")) return true;
		if (el.tabIndex >= 0 && tag !== "body") return true;
		const style = window.getComputedStyle(el);
		return style.cursor === "pointer" && tag !== "html" && tag !== "body";
	}

	function isTopElement(el, rect) {
		const cx = rect.left + rect.width / 2;
		const cy = rect.top + rect.height / 2;
		const root = el.getRootNode();
		const top = root.elementFromPoint
			? root.elementFromPoint(cx, cy)
			: document.elementFromPoint(cx, cy);
		if (!top) return false;
		return el === top || el.contains(top) || top.contains(el);
	}

	function isInExpandedViewport(rect) {
		if (viewportExpansion === -1) return true;
		return !(
			rect.bottom < -viewportExpansion ||
			rect.top > window.innerHeight + viewportExpansion ||
			rect.right < -viewportExpansion ||
			rect.left > window.innerWidth + viewportExpansion
		);
	}

	function coordinateSet(rect, offsetX, offsetY) {
		return {
			topLeft: { x: rect.left + offsetX, y: rect.top + offsetY },
			bottomRight: { x: rect.right + offsetX, y: rect.bottom + offsetY },
			center: {
				x: rect.left + rect.width / 2 + offsetX,
				y: rect.top + rect.height / 2 + offsetY,
			},
			width: rect.width,
			height: rect.height,
		};
	}

	function xpathFor(el) {
		const segments = [];
		for (let n = el; n && n.nodeType === Node.ELEMENT_NODE; n = n.parentNode) {
			let index = 1;
			for (let sib = n.previousSibling; sib; sib = sib.previousSibling) {
				if (sib.nodeType === Node.ELEMENT_NODE &&
					sib.tagName === n.tagName) index++;
			}
			segments.unshift(n.tagName.toLowerCase() + "[" + index + "]");
		}
		return "/" + segments.join("/");
	}

	function walk(node, parentVisible) {
		if (node.nodeType === Node.TEXT_NODE) {
			const id = String(nodeCounter++);
			nodeMap[id] = {
				type: "TEXT_NODE",
				text: node.textContent,
				isVisible: parentVisible,
			};
			return id;
		}
		if (node.nodeType !== Node.ELEMENT_NODE) return null;

		const el = node;
		const tag = el.tagName.toLowerCase();
		if (tag === "script" || tag === "style" || tag === "noscript" ||
			el.id === HIGHLIGHT_CONTAINER_ID) {
			return null;
		}

		const rect = el.getBoundingClientRect();
		const visible = isVisible(el);
		const interactive = visible && isInteractive(el);
		const inViewport = isInExpandedViewport(rect);
		const top = interactive && isTopElement(el, rect);

		const attributes = {};
		for (const attr of el.attributes) attributes[attr.name] = attr.value;

		const entry = {
			tagName: tag,
			attributes: attributes,
			xpath: xpathFor(el),
			isVisible: visible,
			isInteractive: interactive,
			isTopElement: top,
			isInViewport: inViewport,
			shadowRoot: !!el.shadowRoot,
			children: [],
		};

		if (interactive && top && inViewport) {
			entry.highlightIndex = highlightCounter++;
			entry.viewportCoordinates = coordinateSet(rect, 0, 0);
			entry.pageCoordinates = coordinateSet(rect, window.scrollX, window.scrollY);
			if (doHighlight && (focusIndex < 0 || focusIndex === entry.highlightIndex)) {
				drawBadge(entry.highlightIndex, rect);
			}
			if (focusIndex >= 0 && focusIndex === entry.highlightIndex) {
				el.scrollIntoView({ block: "center", behavior: "instant" });
			}
		}

		const id = String(nodeCounter++);
		nodeMap[id] = entry;

		const queue = el.shadowRoot
			? [...el.shadowRoot.childNodes, ...el.childNodes]
			: [...el.childNodes];
		for (const child of queue) {
			const childId = walk(child, visible);
			if (childId !== null) entry.children.push(childId);
		}
		return id;
	}

	removeHighlightContainer();
	const rootId = walk(document.body, true);
	return { rootId: rootId === null ? "" : rootId, map: nodeMap };
}`

// removeHighlightsJS clears any badges drawn by a previous probe run.
const removeHighlightsJS = `(function () {
	const el = document.getElementById("waypoint-highlight-container");
	if (el) el.remove();
})()`
