package pagemodel

import (
	"html"
	"path"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ImagePrefix is where member pictures live on the public site.
const ImagePrefix = "./sites/esnmodena.it/files/members/"

// DefaultImageFilename derives the picture of a member from their name,
// "Anna Bianchi" becomes "anna_bianchi.jpg".
func DefaultImageFilename(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_") + ".jpg"
}

// imageSource returns the src of the picture of m.
func imageSource(m Member) string {
	filename := plainText(m.ImageFilename)
	if filename == "" {
		return ImagePrefix + DefaultImageFilename(plainText(m.Name))
	}
	return ImagePrefix + path.Base(filename)
}

var strictPolicy = bluemonday.StrictPolicy()

// plainText strips any markup from user supplied values, leaving the text a browser
// would show for them.
func plainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(s)))
}

// CleanName returns the name a card shows for name: markup stripped, entities decoded,
// surrounding space trimmed.
func CleanName(name string) string {
	return plainText(name)
}

// Identity is the key two names are compared by, "<b> Anna Bianchi</b>" and
// "anna bianchi" are the same member.
func Identity(name string) string {
	return strings.ToLower(CleanName(name))
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", `"`, "&quot;")
)

// renderCard produces the markup of a member card, the role is expected to be the
// display role already.
func renderCard(config sectionConfig, m Member, badge string) string {
	name := plainText(m.Name)
	role := plainText(m.Role)
	return strings.NewReplacer(
		"{{color}}", config.color,
		"{{tint}}", config.tint,
		"{{shadow}}", config.shadow,
		"{{badge}}", textEscaper.Replace(badge),
		"{{src}}", attrEscaper.Replace(imageSource(m)),
		"{{name}}", textEscaper.Replace(name),
		"{{role}}", textEscaper.Replace(role),
		"{{name_attr}}", attrEscaper.Replace(name),
		"{{role_attr}}", attrEscaper.Replace(role),
	).Replace(cardTemplate)
}

const cardTemplate = `
      <article role='listitem' tabindex='0' style="background: #ffffff; border-radius: 16px; box-shadow: 0 2px 8px rgba(0, 0, 0, 0.08); display: flex; flex-direction: column; align-items: center; gap: 0.65rem; padding: 1.5rem; text-align: center; transition: transform 0.3s cubic-bezier(0.4, 0, 0.2, 1), box-shadow 0.3s cubic-bezier(0.4, 0, 0.2, 1); min-height: 100%; outline: 3px solid transparent; outline-offset: 4px; will-change: transform; cursor: default; position: relative; -webkit-tap-highlight-color: rgba(0,0,0,0); border-top: 4px solid {{color}};" data-accent='{{color}}' onmouseover="var accent=this.getAttribute('data-accent'); this.style.boxShadow='0 8px 24px rgba(0, 0, 0, 0.16)'; this.style.transform='translateY(-6px)'; var heading=this.querySelector('h3'); if(heading){heading.style.color=accent;} var image=this.querySelector('img'); if(image){image.style.transform='scale(1.05)'; image.style.filter='grayscale(0%)';}" onmouseout="this.style.boxShadow='0 2px 8px rgba(0, 0, 0, 0.08)'; this.style.transform='translateY(0)'; this.style.outline='3px solid transparent'; var heading=this.querySelector('h3'); if(heading){heading.style.color='var(--esn-ink, #1a1a1a)';} var image=this.querySelector('img'); if(image){var reset=image.getAttribute('data-grayscale')==='true'?'grayscale(100%)':'grayscale(0%)'; image.style.transform='scale(1)'; image.style.filter=reset;}" onfocus="var accent=this.getAttribute('data-accent'); this.style.boxShadow='0 8px 24px rgba(0, 0, 0, 0.16)'; this.style.transform='translateY(-6px)'; this.style.outline='3px solid '+accent; var heading=this.querySelector('h3'); if(heading){heading.style.color=accent;} var image=this.querySelector('img'); if(image){image.style.transform='scale(1.05)'; image.style.filter='grayscale(0%)';}" onblur="this.style.boxShadow='0 2px 8px rgba(0, 0, 0, 0.08)'; this.style.transform='translateY(0)'; this.style.outline='3px solid transparent'; var heading=this.querySelector('h3'); if(heading){heading.style.color='var(--esn-ink, #1a1a1a)';} var image=this.querySelector('img'); if(image){var reset=image.getAttribute('data-grayscale')==='true'?'grayscale(100%)':'grayscale(0%)'; image.style.transform='scale(1)'; image.style.filter=reset;}" aria-label="{{name_attr}}, {{role_attr}}">
        <p style="font-size: 0.75rem; text-transform: uppercase; letter-spacing: 0.08em; margin: 0; padding: 0.2rem 0.85rem; border-radius: 999px; background: {{tint}}; color: {{color}};">{{badge}}</p>
        <figure style="margin: 0; width: 144px; height: 144px; display: flex; align-items: center; justify-content: center;">
          <img src="{{src}}" alt="{{name_attr}}, {{role_attr}} - ESN Modena e Reggio Emilia" title="{{name_attr}}, {{role_attr}} - ESN Modena e Reggio Emilia" loading="lazy" decoding="async" width="128" height="128" data-grayscale="false" style="width: 128px; height: 128px; aspect-ratio: 1 / 1; border-radius: 50%; object-fit: cover; transition: transform 0.3s ease, filter 0.3s ease; border: 4px solid #ffffff; box-shadow: 0 0 0 3px {{shadow}}; filter: grayscale(0%);" />
        </figure>
        <h3 style="font-size: 1.15rem; font-weight: 600; letter-spacing: -0.01em; margin: 0; color: var(--esn-ink, #1a1a1a);">{{name}}</h3>
        <p style="font-size: 0.95rem; margin: 0; font-weight: 600; letter-spacing: 0.01em; color: {{color}};">{{role}}</p>
      </article>`
