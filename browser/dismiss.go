package browser

// dismissJS interprets []Rule inside the page. Every rule and every matched
// element is wrapped in its own try/catch; one bad selector never stops the
// rest. Overflow locks on <html> and <body> are released at the end.
const dismissJS = `(rules) => {
  const report = { clicked: 0, hidden: 0 };
  const visible = (el) => {
    const s = window.getComputedStyle(el);
    return s.display !== 'none' && s.visibility !== 'hidden' && s.opacity !== '0' && el.offsetParent !== null;
  };
  for (const rule of rules || []) {
    let els = [];
    try { els = document.querySelectorAll(rule.selector); } catch (e) { continue; }
    els.forEach((el) => {
      try {
        if (rule.action === 'click') {
          if (visible(el)) { el.click(); report.clicked++; }
        } else if (rule.action === 'click-text') {
          if (el.children.length !== 0) return;
          const text = (el.textContent || '').trim();
          const hit = (rule.texts || []).some((t) => t === text || t.toLowerCase() === text.toLowerCase());
          if (hit && visible(el)) { el.click(); report.clicked++; }
        } else if (rule.action === 'hide') {
          const r = el.getBoundingClientRect();
          if (r.width <= (rule.minWidth || 0) || r.height <= (rule.minHeight || 0)) return;
          const pos = window.getComputedStyle(el).position;
          if ((rule.positions || []).length && !rule.positions.includes(pos)) return;
          el.style.display = 'none';
          report.hidden++;
        }
      } catch (e) {}
    });
  }
  try {
    document.body.style.overflow = 'auto';
    document.body.style.overflowY = 'auto';
    document.documentElement.style.overflow = 'auto';
  } catch (e) {}
  return report;
}`
